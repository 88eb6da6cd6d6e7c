package status

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	check "gopkg.in/check.v1"

	"github.com/mycok/sdnsync/internal/index"
	"github.com/mycok/sdnsync/internal/watermark"
)

var _ = check.Suite(new(ConfigTestSuite))
var _ = check.Suite(new(StatusServiceTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type ConfigTestSuite struct{}

func (s *ConfigTestSuite) TestConfigValidation(c *check.C) {
	originalConfig := Config{
		ListenAddr:   ":8080",
		WatermarkAPI: stubWatermarks{},
	}

	config := originalConfig
	c.Assert(config.validate(), check.IsNil)
	c.Assert(config.Logger, check.Not(check.IsNil), check.Commentf("default logger was not assigned"))

	config = originalConfig
	config.ListenAddr = ""
	c.Assert(config.validate(), check.ErrorMatches, "(?ms).*listen address not provided.*")

	config = originalConfig
	config.WatermarkAPI = nil
	c.Assert(config.validate(), check.ErrorMatches, "(?ms).*watermark API not provided.*")

	config = originalConfig
	config.Resolver = stubResolver{}
	c.Assert(config.validate(), check.ErrorMatches, "(?ms).*alias not provided.*")
}

type StatusServiceTestSuite struct{}

func (s *StatusServiceTestSuite) TestHealth(c *check.C) {
	svc := s.newService(c, nil)

	rec := s.get(svc, healthEndpoint)
	c.Assert(rec.Code, check.Equals, http.StatusOK)
	c.Assert(rec.Body.String(), check.Equals, `{"status":"ok"}`+"\n")
}

func (s *StatusServiceTestSuite) TestWatermarks(c *check.C) {
	svc := s.newService(c, nil)

	rec := s.get(svc, watermarksEndpoint)
	c.Assert(rec.Code, check.Equals, http.StatusOK)
	c.Assert(rec.Header().Get("Content-Type"), check.Equals, "application/json")
	c.Assert(rec.Body.String(), check.Equals,
		`{"https://feeds.example.com/sdn.xml":"2024-03-01T10:00:00Z"}`+"\n")
}

func (s *StatusServiceTestSuite) TestAliasesNotServedWithoutResolver(c *check.C) {
	svc := s.newService(c, nil)

	rec := s.get(svc, aliasesEndpoint)
	c.Assert(rec.Code, check.Equals, http.StatusNotFound)
}

func (s *StatusServiceTestSuite) TestAliases(c *check.C) {
	svc := s.newService(c, stubResolver{indices: []string{"ofac_test_0", "ofac_test_1"}})

	rec := s.get(svc, aliasesEndpoint)
	c.Assert(rec.Code, check.Equals, http.StatusOK)
	c.Assert(rec.Body.String(), check.Equals,
		`{"alias":"vofac_test","indices":["ofac_test_0","ofac_test_1"]}`+"\n")
}

func (s *StatusServiceTestSuite) TestAliasesResolveError(c *check.C) {
	svc := s.newService(c, stubResolver{err: errors.New("connection refused")})

	rec := s.get(svc, aliasesEndpoint)
	c.Assert(rec.Code, check.Equals, http.StatusBadGateway)
	c.Assert(strings.Contains(rec.Body.String(), "connection refused"), check.Equals, false)
}

func (s *StatusServiceTestSuite) TestRunStopsOnCancel(c *check.C) {
	svc := s.newService(c, nil)

	ctx, cancelFn := context.WithCancel(context.TODO())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	cancelFn()

	select {
	case err := <-errCh:
		c.Assert(err, check.IsNil)
	case <-time.After(10 * time.Second):
		c.Fatal("timed out waiting for the service to stop")
	}
}

func (s *StatusServiceTestSuite) newService(c *check.C, resolver index.Resolver) *Service {
	config := Config{
		ListenAddr:   "127.0.0.1:0",
		WatermarkAPI: stubWatermarks{
			"https://feeds.example.com/sdn.xml": time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC),
		},
		Resolver: resolver,
		Alias:    "vofac_test",
	}

	svc, err := New(config)
	c.Assert(err, check.IsNil)

	return svc
}

func (s *StatusServiceTestSuite) get(svc *Service, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

type stubWatermarks watermark.Mapping

func (m stubWatermarks) Watermarks() watermark.Mapping { return watermark.Mapping(m).Clone() }

type stubResolver struct {
	indices []string
	err     error
}

func (r stubResolver) Resolve(context.Context, string) ([]string, error) {
	return r.indices, r.err
}

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	check "gopkg.in/check.v1"

	"github.com/mycok/sdnsync/internal/config"
	memindex "github.com/mycok/sdnsync/internal/index/store/memory"
)

var _ = check.Suite(new(appTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type appTestSuite struct {
	dir string
	srv *httptest.Server
	cfg config.Config
}

func (s *appTestSuite) SetUpTest(c *check.C) {
	lastModified := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC).Format(http.TimeFormat)
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", lastModified)
		_, _ = io.WriteString(w, `<sdnList><sdnEntry><uid>306</uid><lastName>BANCO NACIONAL DE CUBA</lastName></sdnEntry></sdnList>`)
	}))

	s.dir = c.MkDir()
	mapping := filepath.Join(s.dir, "mapping.json")
	c.Assert(os.WriteFile(mapping, []byte(`{"mappings":{}}`), 0o600), check.IsNil)

	feeds := filepath.Join(s.dir, "feeds.toml")
	c.Assert(os.WriteFile(feeds, []byte(fmt.Sprintf(`
[[feed]]
name = "sdn"
url = "%s/sdn.xml"
`, s.srv.URL)), 0o600), check.IsNil)

	s.cfg = config.Config{
		Environment:  "test",
		IndexURI:     "in-memory://",
		WatermarkURI: "file://" + filepath.Join(s.dir, "marks.json"),
		MappingFile:  mapping,
		FeedsFile:    feeds,
	}
	c.Assert(s.cfg.Validate(), check.IsNil)

	logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
}

func (s *appTestSuite) TearDownTest(c *check.C) {
	s.srv.Close()
}

func (s *appTestSuite) TestRunOnce(c *check.C) {
	a, err := newApp(s.cfg, logger)
	c.Assert(err, check.IsNil)
	defer a.close()

	c.Assert(a.runOnce(context.TODO()), check.IsNil)

	names, err := a.backend.(*memindex.InMemoryBackend).Resolve(context.TODO(), "vofac_test")
	c.Assert(err, check.IsNil)
	c.Assert(names, check.DeepEquals, []string{"ofac_test_0"})

	marks, err := os.ReadFile(filepath.Join(s.dir, "marks.json"))
	c.Assert(err, check.IsNil)
	c.Assert(strings.Contains(string(marks), s.srv.URL+"/sdn.xml"), check.Equals, true)
}

func (s *appTestSuite) TestStartupFailures(c *check.C) {
	cfg := s.cfg
	cfg.MappingFile = filepath.Join(s.dir, "missing.json")
	_, err := newApp(cfg, logger)
	c.Assert(err, check.ErrorMatches, "read index schema: .*")

	cfg = s.cfg
	cfg.IndexURI = "solr://localhost"
	_, err = newApp(cfg, logger)
	c.Assert(err, check.ErrorMatches, ".*unsupported index URI scheme.*")

	cfg = s.cfg
	cfg.WatermarkURI = "redis://localhost"
	_, err = newApp(cfg, logger)
	c.Assert(err, check.ErrorMatches, ".*unsupported watermark URI scheme.*")
}

func (s *appTestSuite) TestDaemonStopsOnCancel(c *check.C) {
	a, err := newApp(s.cfg, logger)
	c.Assert(err, check.IsNil)
	defer a.close()

	ctx, cancelFn := context.WithCancel(context.TODO())
	errCh := make(chan error, 1)
	go func() { errCh <- a.runDaemon(ctx, "127.0.0.1:0") }()

	// Wait for the first cycle to attach the alias.
	backend := a.backend.(*memindex.InMemoryBackend)
	for i := 0; i < 100; i++ {
		if names, _ := backend.Resolve(context.TODO(), "vofac_test"); len(names) == 1 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	cancelFn()

	select {
	case err := <-errCh:
		c.Assert(err, check.IsNil)
	case <-time.After(10 * time.Second):
		c.Fatal("timed out waiting for the daemon to stop")
	}
}

func (s *appTestSuite) TestWritePidFile(c *check.C) {
	path := filepath.Join(s.dir, "ofac.pid")
	c.Assert(writePidFile(path), check.IsNil)

	data, err := os.ReadFile(path)
	c.Assert(err, check.IsNil)
	c.Assert(strings.TrimSpace(string(data)), check.Equals, strconv.Itoa(os.Getpid()))
}

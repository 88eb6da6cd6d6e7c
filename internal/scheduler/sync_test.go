package scheduler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	check "gopkg.in/check.v1"

	"github.com/mycok/sdnsync/internal/feed"
	"github.com/mycok/sdnsync/internal/index"
	memindex "github.com/mycok/sdnsync/internal/index/store/memory"
	"github.com/mycok/sdnsync/internal/watermark"
	"github.com/mycok/sdnsync/internal/watermark/store/file"
)

var _ = check.Suite(new(SyncTestSuite))

type servedFeed struct {
	// A zero time omits the Last-Modified header.
	lastModified time.Time
	entries      []string
	status       int
}

// feedServer serves sdnList documents whose content and Last-Modified
// header can be changed between cycles.
type feedServer struct {
	mu    sync.Mutex
	feeds map[string]*servedFeed
	gets  map[string]int
}

func (fs *feedServer) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/{feed}.xml", fs.serveFeed).Methods(http.MethodHead, http.MethodGet)

	return r
}

func (fs *feedServer) serveFeed(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["feed"]

	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, ok := fs.feeds[name]
	if !ok {
		http.NotFound(w, r)

		return
	}

	if f.status != 0 {
		w.WriteHeader(f.status)

		return
	}

	if r.Method == http.MethodGet {
		fs.gets[name]++
	}

	w.Header().Set("Content-Type", "text/xml")
	if !f.lastModified.IsZero() {
		w.Header().Set("Last-Modified", f.lastModified.UTC().Format(http.TimeFormat))
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" standalone="yes"?>` + "\n<sdnList>\n")
	fmt.Fprintf(&b, "  <publshInformation><Record_Count>%d</Record_Count></publshInformation>\n", len(f.entries))
	for i, entryName := range f.entries {
		fmt.Fprintf(&b, "  <sdnEntry><uid>%d</uid><lastName>%s</lastName><sdnType>Entity</sdnType></sdnEntry>\n", i+1, entryName)
	}
	b.WriteString("</sdnList>\n")

	_, _ = io.WriteString(w, b.String())
}

func (fs *feedServer) update(path string, fn func(f *servedFeed)) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fn(fs.feeds[path])
}

func (fs *feedServer) getCount(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.gets[path]
}

// recordingBackend counts the calls reaching the in-memory backend and lets
// tests hook into index creation.
type recordingBackend struct {
	*memindex.InMemoryBackend

	mu       sync.Mutex
	calls    map[string]int
	onCreate func(name string)
}

func newRecordingBackend(backend *memindex.InMemoryBackend) *recordingBackend {
	return &recordingBackend{InMemoryBackend: backend, calls: make(map[string]int)}
}

func (b *recordingBackend) DetachAlias(ctx context.Context, alias, name string) error {
	b.record("detach")

	return b.InMemoryBackend.DetachAlias(ctx, alias, name)
}

func (b *recordingBackend) DeleteIndex(ctx context.Context, name string) error {
	b.record("delete")

	return b.InMemoryBackend.DeleteIndex(ctx, name)
}

func (b *recordingBackend) CreateIndex(ctx context.Context, name string, schema []byte) error {
	b.record("create")

	b.mu.Lock()
	hook := b.onCreate
	b.mu.Unlock()

	if hook != nil {
		hook(name)
	}

	return b.InMemoryBackend.CreateIndex(ctx, name, schema)
}

func (b *recordingBackend) IndexDocument(ctx context.Context, name, id string, doc map[string]interface{}) error {
	b.record("index")

	return b.InMemoryBackend.IndexDocument(ctx, name, id, doc)
}

func (b *recordingBackend) AttachAlias(ctx context.Context, alias, name string) error {
	b.record("attach")

	return b.InMemoryBackend.AttachAlias(ctx, alias, name)
}

func (b *recordingBackend) record(op string) {
	b.mu.Lock()
	b.calls[op]++
	b.mu.Unlock()
}

// reset returns the calls recorded so far and clears them.
func (b *recordingBackend) reset() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	calls := b.calls
	b.calls = make(map[string]int)

	return calls
}

func (b *recordingBackend) setOnCreate(fn func(name string)) {
	b.mu.Lock()
	b.onCreate = fn
	b.mu.Unlock()
}

// SyncTestSuite runs complete cycles against an HTTP feed server, the
// in-memory index backend and a file watermark store.
type SyncTestSuite struct {
	feeds   *feedServer
	srv     *httptest.Server
	backend *memindex.InMemoryBackend
	calls   *recordingBackend
	sources []feed.Source
	stateAt string
}

func (s *SyncTestSuite) SetUpTest(c *check.C) {
	s.feeds = &feedServer{
		feeds: map[string]*servedFeed{
			"consolidated": {
				lastModified: t0,
				entries:      []string{"AEROCARIBBEAN AIRLINES", "BANCO NACIONAL DE CUBA", "CUBAN FREIGHT ENTERPRISE"},
			},
			"sdn": {
				lastModified: t0,
				entries:      []string{"ANGLO-CARIBBEAN CO., LTD."},
			},
		},
		gets: make(map[string]int),
	}
	s.srv = httptest.NewServer(s.feeds.router())
	s.backend = memindex.NewInMemoryBackend()
	s.calls = newRecordingBackend(s.backend)
	s.sources = []feed.Source{
		{Ordinal: 0, URL: s.srv.URL + "/consolidated.xml", Name: "consolidated"},
		{Ordinal: 1, URL: s.srv.URL + "/sdn.xml", Name: "sdn"},
	}
	s.stateAt = filepath.Join(c.MkDir(), file.DefaultPath)
}

func (s *SyncTestSuite) TearDownTest(c *check.C) {
	s.srv.Close()
	c.Assert(s.backend.Close(), check.IsNil)
}

// newService returns a scheduler as a freshly started process would build it.
func (s *SyncTestSuite) newService(c *check.C) *Service {
	builder, err := index.NewBuilder(index.Config{
		Backend:  s.calls,
		BaseName: "ofac_test",
		Alias:    "vofac_test",
		Schema:   []byte(`{"mappings":{"properties":{"source":{"type":"integer"}}}}`),
	})
	c.Assert(err, check.IsNil)

	svc, err := New(Config{
		Sources:        s.sources,
		Poller:         feed.NewPoller(s.srv.Client()),
		Fetcher:        feed.NewFetcher(s.srv.Client()),
		Builder:        builder,
		Watermarks:     file.NewStore(s.stateAt, nil),
		PersistPerFeed: true,
	})
	c.Assert(err, check.IsNil)

	return svc
}

func (s *SyncTestSuite) TestFirstRunBuildsEveryIndex(c *check.C) {
	report, err := s.newService(c).RunOnce(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(report.Count(StatusRebuilt), check.Equals, 2)

	s.assertAliased(c, "ofac_test_0", "ofac_test_1")
	s.assertDocCount(c, "ofac_test_0", 3)
	s.assertDocCount(c, "ofac_test_1", 1)

	ids, err := s.backend.Search("vofac_test", "cuba", 10)
	c.Assert(err, check.IsNil)
	c.Assert(ids, check.DeepEquals, []string{"0-2"})

	s.assertPersisted(c, watermark.Mapping{s.sources[0].URL: t0, s.sources[1].URL: t0})
}

func (s *SyncTestSuite) TestSecondRunIsIdempotent(c *check.C) {
	_, err := s.newService(c).RunOnce(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(s.calls.reset(), check.DeepEquals, map[string]int{
		"detach": 2, "delete": 2, "create": 2, "index": 4, "attach": 2,
	})

	report, err := s.newService(c).RunOnce(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(report.Count(StatusUnchanged), check.Equals, 2)

	// Nothing was downloaded and the index was left alone.
	c.Assert(s.feeds.getCount("consolidated"), check.Equals, 1)
	c.Assert(s.feeds.getCount("sdn"), check.Equals, 1)
	c.Assert(s.calls.reset(), check.HasLen, 0)
	s.assertAliased(c, "ofac_test_0", "ofac_test_1")
}

func (s *SyncTestSuite) TestOnlyChangedFeedIsRebuilt(c *check.C) {
	svc := s.newService(c)
	_, err := svc.RunOnce(context.TODO())
	c.Assert(err, check.IsNil)

	s.feeds.update("sdn", func(f *servedFeed) {
		f.lastModified = t1
		f.entries = append(f.entries, "BANCO NACIONAL DE CUBA")
	})

	report, err := svc.Cycle(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(report.Results[0].Status, check.Equals, StatusUnchanged)
	c.Assert(report.Results[1].Status, check.Equals, StatusRebuilt)
	c.Assert(report.Results[1].Outcome, check.DeepEquals, index.Outcome{Index: "ofac_test_1", Inserted: 2})

	c.Assert(s.feeds.getCount("consolidated"), check.Equals, 1)
	s.assertDocCount(c, "ofac_test_0", 3)
	s.assertDocCount(c, "ofac_test_1", 2)
	s.assertAliased(c, "ofac_test_0", "ofac_test_1")
	s.assertPersisted(c, watermark.Mapping{s.sources[0].URL: t0, s.sources[1].URL: t1})
}

func (s *SyncTestSuite) TestFailingFeedDoesNotAffectOthers(c *check.C) {
	svc := s.newService(c)
	_, err := svc.RunOnce(context.TODO())
	c.Assert(err, check.IsNil)

	s.feeds.update("consolidated", func(f *servedFeed) { f.status = http.StatusServiceUnavailable })
	s.feeds.update("sdn", func(f *servedFeed) { f.lastModified = t1 })

	report, err := svc.Cycle(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(report.Results[0].Status, check.Equals, StatusFailed)
	c.Assert(report.Results[0].Err, check.ErrorMatches, ".*unexpected status code 503")
	c.Assert(report.Results[1].Status, check.Equals, StatusRebuilt)

	// The previous generation of the failing feed is still served.
	s.assertAliased(c, "ofac_test_0", "ofac_test_1")
	s.assertPersisted(c, watermark.Mapping{s.sources[0].URL: t0, s.sources[1].URL: t1})
}

func (s *SyncTestSuite) TestMissingLastModifiedSkipsFeed(c *check.C) {
	s.feeds.update("sdn", func(f *servedFeed) { f.lastModified = time.Time{} })

	report, err := s.newService(c).RunOnce(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(report.Results[0].Status, check.Equals, StatusRebuilt)

	c.Assert(report.Results[1].Status, check.Equals, StatusIndeterminate)
	c.Assert(s.feeds.getCount("sdn"), check.Equals, 0)
	s.assertAliased(c, "ofac_test_0")
	s.assertPersisted(c, watermark.Mapping{s.sources[0].URL: t0})
}

func (s *SyncTestSuite) TestCycleOnNewServiceKeepsPersistedWatermarks(c *check.C) {
	_, err := s.newService(c).RunOnce(context.TODO())
	c.Assert(err, check.IsNil)
	s.calls.reset()

	s.feeds.update("sdn", func(f *servedFeed) { f.lastModified = time.Time{} })

	report, err := s.newService(c).Cycle(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(report.Results[0].Status, check.Equals, StatusUnchanged)
	c.Assert(report.Results[1].Status, check.Equals, StatusIndeterminate)

	c.Assert(s.calls.reset(), check.HasLen, 0)
	s.assertPersisted(c, watermark.Mapping{s.sources[0].URL: t0, s.sources[1].URL: t0})
}

func (s *SyncTestSuite) TestShutdownCompletesInFlightRebuild(c *check.C) {
	_, err := s.newService(c).RunOnce(context.TODO())
	c.Assert(err, check.IsNil)

	s.feeds.update("consolidated", func(f *servedFeed) {
		f.lastModified = t1
		f.entries = f.entries[:1]
	})

	ctx, cancelFn := context.WithCancel(context.TODO())
	defer cancelFn()

	// Shut down while the consolidated index is detached from the alias.
	s.calls.setOnCreate(func(string) { cancelFn() })

	c.Assert(s.newService(c).Run(ctx), check.IsNil)

	s.assertAliased(c, "ofac_test_0", "ofac_test_1")
	s.assertDocCount(c, "ofac_test_0", 1)
	s.assertPersisted(c, watermark.Mapping{s.sources[0].URL: t1, s.sources[1].URL: t0})
}

func (s *SyncTestSuite) TestWatermarksSurviveRestart(c *check.C) {
	_, err := s.newService(c).RunOnce(context.TODO())
	c.Assert(err, check.IsNil)

	restarted := s.newService(c)
	report, err := restarted.RunOnce(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(report.Count(StatusUnchanged), check.Equals, 2)
	c.Assert(restarted.Watermarks(), check.DeepEquals, watermark.Mapping{s.sources[0].URL: t0, s.sources[1].URL: t0})
}

func (s *SyncTestSuite) assertAliased(c *check.C, names ...string) {
	got, err := s.backend.Resolve(context.TODO(), "vofac_test")
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, names)
}

func (s *SyncTestSuite) assertDocCount(c *check.C, name string, exp uint64) {
	count, err := s.backend.DocCount(name)
	c.Assert(err, check.IsNil)
	c.Assert(count, check.Equals, exp)
}

func (s *SyncTestSuite) assertPersisted(c *check.C, exp watermark.Mapping) {
	got, err := file.NewStore(s.stateAt, nil).Load()
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, exp)
}

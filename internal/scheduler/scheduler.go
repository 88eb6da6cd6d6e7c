package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mycok/sdnsync/internal/entry"
	"github.com/mycok/sdnsync/internal/feed"
	"github.com/mycok/sdnsync/internal/index"
	"github.com/mycok/sdnsync/internal/watermark"
	"github.com/mycok/sdnsync/internal/xmltree"
)

// Status describes what a cycle did with a feed.
type Status string

// The possible feed statuses of a cycle.
const (
	// StatusSkipped is reported for feeds that were not visited because the
	// cycle was cancelled.
	StatusSkipped Status = "skipped"

	// StatusUnchanged is reported for feeds that did not change since their
	// watermark.
	StatusUnchanged Status = "unchanged"

	// StatusIndeterminate is reported for feeds that did not expose a
	// usable modification time.
	StatusIndeterminate Status = "indeterminate"

	// StatusRebuilt is reported for feeds whose index was rebuilt.
	StatusRebuilt Status = "rebuilt"

	// StatusFailed is reported for feeds that could not be polled, fetched,
	// parsed or rebuilt.
	StatusFailed Status = "failed"
)

// FeedResult describes the processing of a single feed during a cycle.
type FeedResult struct {
	Source feed.Source
	Status Status

	// The Last-Modified time the feed reported, if any.
	Remote time.Time

	// Populated when a rebuild was attempted.
	Outcome index.Outcome

	// Populated when Status is StatusFailed.
	Err error
}

// Report summarizes a cycle.
type Report struct {
	Results []FeedResult
}

// Count returns the number of feeds that ended the cycle with status.
func (r Report) Count(status Status) int {
	var n int
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}

	return n
}

// Service keeps the index synchronized with a list of feeds. It satisfies
// the service.Service interface.
type Service struct {
	config Config

	mu     sync.RWMutex
	marks  watermark.Mapping
	loaded bool
}

// New creates and returns a fully configured scheduler service instance.
func New(config Config) (*Service, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("scheduler service: config validation failed: %w", err)
	}

	return &Service{
		config: config,
		marks:  make(watermark.Mapping),
	}, nil
}

// Name returns the name of the service.
func (svc *Service) Name() string { return "scheduler" }

// Watermarks returns a copy of the watermarks the scheduler currently holds.
func (svc *Service) Watermarks() watermark.Mapping {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	return svc.marks.Clone()
}

// RunOnce executes a single cycle. Only the error of the final watermark
// save is returned; per-feed failures are reported in the Report.
func (svc *Service) RunOnce(ctx context.Context) (Report, error) {
	return svc.Cycle(ctx)
}

// Run executes a cycle every update interval until the context gets
// cancelled. The first cycle starts immediately. Cancelling the context
// never interrupts the feed being synchronized; the loop exits once that
// feed completes. Cycle errors are logged and never stop the loop.
func (svc *Service) Run(ctx context.Context) error {
	svc.config.Logger.WithField(
		"update_interval", svc.config.UpdateInterval.String(),
	).Info("starting service")
	defer svc.config.Logger.Info("stopped service")

	for {
		if _, err := svc.Cycle(ctx); err != nil {
			svc.config.Logger.WithField("err", err).Error("failed to persist watermarks")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-svc.config.Clock.After(svc.config.UpdateInterval):
		}
	}
}

// Cycle visits every feed in order and rebuilds the index of the ones that
// changed since their watermark. The persisted watermarks are loaded by the
// first cycle of the service. A failing feed never affects the others and
// keeps its previous watermark. Once all feeds are visited the watermarks
// are saved; the save error is the only error returned.
//
// Cancellation is only observed between feeds: a feed whose rebuild is in
// progress runs to completion so its index is never left detached from the
// alias, and the remaining feeds are reported as skipped.
func (svc *Service) Cycle(ctx context.Context) (Report, error) {
	svc.ensureLoaded()

	svc.config.Logger.Info("starting update cycle")
	startedAt := svc.config.Clock.Now()

	feedCtx := context.WithoutCancel(ctx)
	report := Report{Results: make([]FeedResult, 0, len(svc.config.Sources))}
	for _, src := range svc.config.Sources {
		if ctx.Err() != nil {
			report.Results = append(report.Results, FeedResult{Source: src, Status: StatusSkipped})

			continue
		}

		report.Results = append(report.Results, svc.syncFeed(feedCtx, src))
	}

	err := svc.persist()

	svc.config.Logger.WithFields(logrus.Fields{
		"rebuilt":      report.Count(StatusRebuilt),
		"failed":       report.Count(StatusFailed),
		"elapsed_time": svc.config.Clock.Now().Sub(startedAt).String(),
	}).Info("completed update cycle")

	return report, err
}

func (svc *Service) syncFeed(ctx context.Context, src feed.Source) FeedResult {
	res := FeedResult{Source: src}
	logger := svc.config.Logger.WithFields(logrus.Fields{
		"feed":    src.URL,
		"ordinal": src.Ordinal,
	})

	stored := svc.watermark(src.URL)
	decision, err := svc.config.Poller.CheckForUpdate(ctx, src, stored)
	if err != nil {
		logger.WithField("err", err).Error("unable to check feed for updates")

		return failed(res, err)
	}
	res.Remote = decision.Remote

	switch decision.Status {
	case feed.NoChange:
		logger.WithField("last_modified", decision.Remote).Info("feed unchanged")
		res.Status = StatusUnchanged

		return res
	case feed.Indeterminate:
		logger.Warn("feed did not report a usable Last-Modified header; skipping")
		res.Status = StatusIndeterminate

		return res
	}

	logger.WithFields(logrus.Fields{
		"last_modified": decision.Remote,
		"watermark":     stored,
	}).Info("feed changed; updating")

	entries, err := svc.download(ctx, src)
	if err != nil {
		logger.WithField("err", err).Error("unable to download feed")

		return failed(res, err)
	}

	res.Outcome, err = svc.config.Builder.Rebuild(ctx, src, entries)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"err":      err,
			"inserted": res.Outcome.Inserted,
			"failed":   res.Outcome.Failed,
		}).Error("unable to rebuild index")

		return failed(res, err)
	}

	svc.setWatermark(src.URL, decision.Remote)
	res.Status = StatusRebuilt

	if svc.config.PersistPerFeed {
		if err := svc.persist(); err != nil {
			logger.WithField("err", err).Error("failed to persist watermarks")
		}
	}

	return res
}

// download fetches src and extracts its entries.
func (svc *Service) download(ctx context.Context, src feed.Source) ([]entry.Entry, error) {
	body, err := svc.config.Fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	root, err := xmltree.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src.URL, err)
	}

	return entry.Extract(root, src), nil
}

// ensureLoaded populates the watermarks from the store unless a previous
// cycle already did.
func (svc *Service) ensureLoaded() {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.loaded {
		return
	}

	marks, err := svc.config.Watermarks.Load()
	if err != nil {
		svc.config.Logger.WithField("err", err).Warn("unable to load watermarks; every feed will be refreshed")
		marks = make(watermark.Mapping)
	}

	svc.marks = marks.Clone()
	svc.loaded = true
}

func (svc *Service) persist() error {
	if err := svc.config.Watermarks.Save(svc.Watermarks()); err != nil {
		return fmt.Errorf("save watermarks: %w", err)
	}

	return nil
}

func (svc *Service) watermark(feedURL string) time.Time {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	return svc.marks.Get(feedURL)
}

func (svc *Service) setWatermark(feedURL string, ts time.Time) {
	svc.mu.Lock()
	svc.marks[feedURL] = ts
	svc.mu.Unlock()
}

func failed(res FeedResult, err error) FeedResult {
	res.Status = StatusFailed
	res.Err = err

	return res
}

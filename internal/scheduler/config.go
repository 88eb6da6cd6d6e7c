package scheduler

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/mycok/sdnsync/internal/entry"
	"github.com/mycok/sdnsync/internal/feed"
	"github.com/mycok/sdnsync/internal/index"
	"github.com/mycok/sdnsync/internal/watermark"
)

//go:generate mockgen -package mocks -destination mocks/mock.go github.com/mycok/sdnsync/internal/scheduler Poller,Fetcher,Builder,WatermarkStore

// DefaultUpdateInterval is the time between two cycles in daemon mode.
const DefaultUpdateInterval = 24 * time.Hour

// Poller checks whether a feed changed since a stored watermark.
type Poller interface {
	CheckForUpdate(ctx context.Context, src feed.Source, stored time.Time) (feed.Decision, error)
}

// Fetcher downloads the body of a feed.
type Fetcher interface {
	Fetch(ctx context.Context, src feed.Source) (io.ReadCloser, error)
}

// Builder rebuilds the physical index of a feed from a batch of entries.
type Builder interface {
	Rebuild(ctx context.Context, src feed.Source, entries []entry.Entry) (index.Outcome, error)
}

// WatermarkStore persists the per-feed watermarks.
type WatermarkStore interface {
	Load() (watermark.Mapping, error)
	Save(m watermark.Mapping) error
}

// Config defines configurations for the cycle scheduler service.
type Config struct {
	// The feeds to synchronize, in processing order.
	Sources []feed.Source

	// API for detecting feed changes.
	Poller Poller

	// API for downloading feeds.
	Fetcher Fetcher

	// API for rebuilding the index of a feed.
	Builder Builder

	// Durable storage for the feed watermarks.
	Watermarks WatermarkStore

	// A clock instance for generating time-related events. If not specified,
	// the default wall-clock will be used instead.
	Clock clock.Clock

	// The duration between subsequent cycles in daemon mode. Defaults to
	// DefaultUpdateInterval.
	UpdateInterval time.Duration

	// When set, the watermarks are persisted after every successful rebuild
	// in addition to the end of each cycle.
	PersistPerFeed bool

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if srcErr := feed.ValidateSources(config.Sources); srcErr != nil {
		err = multierror.Append(err, srcErr)
	}

	if config.Poller == nil {
		err = multierror.Append(err, fmt.Errorf("feed poller not provided"))
	}

	if config.Fetcher == nil {
		err = multierror.Append(err, fmt.Errorf("feed fetcher not provided"))
	}

	if config.Builder == nil {
		err = multierror.Append(err, fmt.Errorf("index builder not provided"))
	}

	if config.Watermarks == nil {
		err = multierror.Append(err, fmt.Errorf("watermark store not provided"))
	}

	if config.Clock == nil {
		config.Clock = clock.WallClock
	}

	if config.UpdateInterval == 0 {
		config.UpdateInterval = DefaultUpdateInterval
	} else if config.UpdateInterval < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for update interval"))
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

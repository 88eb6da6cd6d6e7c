package index

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mycok/sdnsync/internal/entry"
	"github.com/mycok/sdnsync/internal/feed"
	"github.com/mycok/sdnsync/internal/pipeline"
)

// Errors returned (wrapped) by Builder.Rebuild. Each identifies the step of
// the rebuild that failed.
var (
	ErrDetachAlias           = errors.New("detach alias failed")
	ErrDeleteIndex           = errors.New("delete index failed")
	ErrCreateIndex           = errors.New("create index failed")
	ErrTooManyInsertFailures = errors.New("majority of inserts failed")
	ErrAttachAlias           = errors.New("attach alias failed")
)

// Config defines the configuration for a Builder.
type Config struct {
	// The search store to rebuild indices in.
	Backend Backend

	// Prefix of every physical index name. The index of a feed is named
	// <BaseName>_<ordinal>.
	BaseName string

	// The stable alias consumers query.
	Alias string

	// Opaque index schema passed to Backend.CreateIndex.
	Schema []byte

	// The logger to use. If not defined an output-discarding logger will
	// be used instead. Each inserted entry is logged at debug level.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if config.Backend == nil {
		err = multierror.Append(err, fmt.Errorf("backend not provided"))
	}

	if config.BaseName == "" {
		err = multierror.Append(err, fmt.Errorf("index base name not provided"))
	}

	if config.Alias == "" {
		err = multierror.Append(err, fmt.Errorf("alias not provided"))
	}

	if len(config.Schema) == 0 {
		err = multierror.Append(err, fmt.Errorf("index schema not provided"))
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Outcome summarizes a rebuild.
type Outcome struct {
	// Name of the physical index that was rebuilt.
	Index string

	// Number of entries stored in the new index.
	Inserted int

	// Number of entries the backend rejected.
	Failed int
}

// Builder performs blue-green rebuilds of per-feed indices.
type Builder struct {
	config Config
}

// NewBuilder validates config and returns a Builder.
func NewBuilder(config Config) (*Builder, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("index builder: config validation failed: %w", err)
	}

	return &Builder{config: config}, nil
}

// IndexName returns the physical index name for src.
func (b *Builder) IndexName(src feed.Source) string {
	return fmt.Sprintf("%s_%d", b.config.BaseName, src.Ordinal)
}

// Alias returns the alias the builder attaches rebuilt indices to.
func (b *Builder) Alias() string {
	return b.config.Alias
}

// Rebuild replaces the physical index of src with a fresh one holding
// entries and re-attaches the alias to it.
//
// The alias is detached and the previous index deleted first, so consumers
// of the alias miss the entries of src until the rebuild completes. Missing
// aliases or indices are not errors. Insert failures are counted and logged;
// the rebuild fails only when more than half of the inserts fail, in which
// case the alias is left detached. The returned Outcome is populated as far
// as the rebuild progressed.
func (b *Builder) Rebuild(ctx context.Context, src feed.Source, entries []entry.Entry) (Outcome, error) {
	name := b.IndexName(src)
	outcome := Outcome{Index: name}
	logger := b.config.Logger.WithFields(logrus.Fields{
		"feed":  src.URL,
		"index": name,
		"alias": b.config.Alias,
	})

	logger.Info("detaching alias")
	if err := b.config.Backend.DetachAlias(ctx, b.config.Alias, name); err != nil && !IsNotFound(err) {
		return outcome, fmt.Errorf("rebuild %s: %w: %w", name, ErrDetachAlias, err)
	}

	logger.Info("deleting previous index")
	if err := b.config.Backend.DeleteIndex(ctx, name); err != nil && !IsNotFound(err) {
		return outcome, fmt.Errorf("rebuild %s: %w: %w", name, ErrDeleteIndex, err)
	}

	logger.Info("creating index")
	if err := b.config.Backend.CreateIndex(ctx, name, b.config.Schema); err != nil {
		return outcome, fmt.Errorf("rebuild %s: %w: %w", name, ErrCreateIndex, err)
	}

	logger.WithField("entries", len(entries)).Info("inserting entries")
	ins := &inserter{backend: b.config.Backend, index: name, logger: logger}
	sink := new(countingSink)

	// Entries are inserted one at a time, in feed order.
	loader := pipeline.New(pipeline.FIFO(ins))
	if err := loader.Execute(ctx, &entrySource{entries: entries}, sink); err != nil {
		return outcome, fmt.Errorf("rebuild %s: %w", name, err)
	}

	outcome.Inserted, outcome.Failed = sink.count, ins.failed

	if err := ctx.Err(); err != nil {
		return outcome, fmt.Errorf("rebuild %s: %w", name, err)
	}

	logger.WithFields(logrus.Fields{
		"inserted": outcome.Inserted,
		"failed":   outcome.Failed,
	}).Info("entries added")

	if outcome.Failed*2 > len(entries) {
		return outcome, fmt.Errorf(
			"rebuild %s: %w: %d of %d", name, ErrTooManyInsertFailures, outcome.Failed, len(entries),
		)
	}

	if err := b.config.Backend.AttachAlias(ctx, b.config.Alias, name); err != nil {
		return outcome, fmt.Errorf("rebuild %s: %w: %w", name, ErrAttachAlias, err)
	}
	logger.Info("alias attached")

	return outcome, nil
}

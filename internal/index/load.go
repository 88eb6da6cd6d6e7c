package index

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mycok/sdnsync/internal/entry"
	"github.com/mycok/sdnsync/internal/pipeline"
)

var (
	// Static and compile-time checks to ensure the load stages implement the
	// pipeline interfaces.
	_ pipeline.Payload   = (*entryPayload)(nil)
	_ pipeline.Source    = (*entrySource)(nil)
	_ pipeline.Processor = (*inserter)(nil)
	_ pipeline.Sink      = (*countingSink)(nil)
)

type entryPayload struct {
	position int
	entry    entry.Entry
}

func (p *entryPayload) MarkAsProcessed() {}

// entrySource emits a batch of entries in order.
type entrySource struct {
	entries []entry.Entry
	next    int
}

func (s *entrySource) Next(context.Context) bool {
	if s.next >= len(s.entries) {
		return false
	}

	s.next++

	return true
}

func (s *entrySource) Payload() pipeline.Payload {
	return &entryPayload{position: s.next - 1, entry: s.entries[s.next-1]}
}

func (s *entrySource) Error() error { return nil }

// inserter stores each entry in the target index. Rejected entries are
// logged, counted and dropped from the pipeline.
type inserter struct {
	backend Backend
	index   string
	logger  *logrus.Entry
	failed  int
}

func (i *inserter) Process(ctx context.Context, p pipeline.Payload) (pipeline.Payload, error) {
	payload := p.(*entryPayload)
	id := payload.entry.ID()

	if err := i.backend.IndexDocument(ctx, i.index, id, payload.entry); err != nil {
		i.failed++
		i.logger.WithFields(logrus.Fields{
			"err":      err,
			"position": payload.position,
			"doc_id":   id,
		}).Error("failed to insert entry")

		return nil, nil
	}

	if i.logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		i.logger.WithFields(logrus.Fields{
			"position": payload.position,
			"doc_id":   id,
			"entry":    map[string]interface{}(payload.entry),
		}).Debug("inserted entry")
	}

	return payload, nil
}

type countingSink struct {
	count int
}

func (s *countingSink) Consume(context.Context, pipeline.Payload) error {
	s.count++

	return nil
}

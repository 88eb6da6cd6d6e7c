package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/mycok/sdnsync/internal/index"
)

// Static and compile-time checks to ensure InMemoryBackend implements the
// index interfaces.
var (
	_ index.Backend  = (*InMemoryBackend)(nil)
	_ index.Resolver = (*InMemoryBackend)(nil)
)

// InMemoryBackend is an index.Backend that keeps one in-memory bleve index
// per physical index name together with an alias table.
type InMemoryBackend struct {
	mu      sync.RWMutex
	indices map[string]bleve.Index
	aliases map[string]map[string]struct{}
}

// NewInMemoryBackend returns an empty InMemoryBackend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{
		indices: make(map[string]bleve.Index),
		aliases: make(map[string]map[string]struct{}),
	}
}

// Close releases every index held by the backend.
func (b *InMemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for name, idx := range b.indices {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.indices, name)
	}

	b.aliases = make(map[string]map[string]struct{})

	return firstErr
}

// DetachAlias implements index.Backend.
func (b *InMemoryBackend) DetachAlias(_ context.Context, alias, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.indices[name]; !exists {
		return fmt.Errorf("detach alias: index %q: %w", name, index.ErrNotFound)
	}

	targets, exists := b.aliases[alias]
	if !exists {
		return fmt.Errorf("detach alias: alias %q: %w", alias, index.ErrNotFound)
	}

	if _, attached := targets[name]; !attached {
		return fmt.Errorf("detach alias: alias %q on %q: %w", alias, name, index.ErrNotFound)
	}

	delete(targets, name)
	if len(targets) == 0 {
		delete(b.aliases, alias)
	}

	return nil
}

// DeleteIndex implements index.Backend. Aliases pointing at the index are
// removed along with it.
func (b *InMemoryBackend) DeleteIndex(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, exists := b.indices[name]
	if !exists {
		return fmt.Errorf("delete index %q: %w", name, index.ErrNotFound)
	}

	delete(b.indices, name)
	for alias, targets := range b.aliases {
		delete(targets, name)
		if len(targets) == 0 {
			delete(b.aliases, alias)
		}
	}

	if err := idx.Close(); err != nil {
		return fmt.Errorf("delete index %q: %w", name, err)
	}

	return nil
}

// CreateIndex implements index.Backend. The schema must be valid JSON but
// is otherwise not interpreted; documents are indexed with bleve's default
// mapping.
func (b *InMemoryBackend) CreateIndex(_ context.Context, name string, schema []byte) error {
	if !json.Valid(schema) {
		return fmt.Errorf("create index %q: schema is not valid JSON", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.indices[name]; exists {
		return fmt.Errorf("create index %q: %w", name, index.ErrAlreadyExists)
	}

	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("create index %q: %w", name, err)
	}

	b.indices[name] = idx

	return nil
}

// IndexDocument implements index.Backend.
func (b *InMemoryBackend) IndexDocument(_ context.Context, name, id string, doc map[string]interface{}) error {
	b.mu.RLock()
	idx, exists := b.indices[name]
	b.mu.RUnlock()

	if !exists {
		return fmt.Errorf("index document: index %q: %w", name, index.ErrNotFound)
	}

	if err := idx.Index(id, doc); err != nil {
		return fmt.Errorf("index document: %w", err)
	}

	return nil
}

// AttachAlias implements index.Backend.
func (b *InMemoryBackend) AttachAlias(_ context.Context, alias, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.indices[name]; !exists {
		return fmt.Errorf("attach alias: index %q: %w", name, index.ErrNotFound)
	}

	targets, exists := b.aliases[alias]
	if !exists {
		targets = make(map[string]struct{})
		b.aliases[alias] = targets
	}

	targets[name] = struct{}{}

	return nil
}

// Resolve returns the sorted names of the indices alias points at.
func (b *InMemoryBackend) Resolve(_ context.Context, alias string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.aliases[alias]))
	for name := range b.aliases[alias] {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// DocCount returns the number of documents stored in the named index.
func (b *InMemoryBackend) DocCount(name string) (uint64, error) {
	b.mu.RLock()
	idx, exists := b.indices[name]
	b.mu.RUnlock()

	if !exists {
		return 0, fmt.Errorf("doc count: index %q: %w", name, index.ErrNotFound)
	}

	return idx.DocCount()
}

// Search runs a match query against every index alias points at and returns
// the ids of up to size matching documents, best match first.
func (b *InMemoryBackend) Search(alias, expression string, size int) ([]string, error) {
	b.mu.RLock()
	targets := make([]bleve.Index, 0, len(b.aliases[alias]))
	for name := range b.aliases[alias] {
		targets = append(targets, b.indices[name])
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		return nil, fmt.Errorf("search: alias %q: %w", alias, index.ErrNotFound)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(expression), size, 0, false)
	res, err := bleve.NewIndexAlias(targets...).Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}

	return ids, nil
}

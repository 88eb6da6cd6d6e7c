package memory

import (
	"sync"

	"github.com/mycok/sdnsync/internal/watermark"
)

// Static and compile-time check to ensure InMemoryStore implements
// watermark.Store.
var _ watermark.Store = (*InMemoryStore)(nil)

// InMemoryStore keeps watermarks in memory. Its state does not survive a
// process restart.
type InMemoryStore struct {
	mu sync.RWMutex
	m  watermark.Mapping
}

// NewInMemoryStore returns an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{m: make(watermark.Mapping)}
}

// Load returns a copy of the stored mapping.
func (s *InMemoryStore) Load() (watermark.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.m.Clone(), nil
}

// Save replaces the stored mapping with a copy of m.
func (s *InMemoryStore) Save(m watermark.Mapping) error {
	s.mu.Lock()
	s.m = m.Clone()
	s.mu.Unlock()

	return nil
}

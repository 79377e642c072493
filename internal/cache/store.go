package cache

import (
	"context"
	"sync"

	"github.com/irfndi/tickerwall/internal/models"
)

// Store persists cache entries by key. Implementations must be safe for
// concurrent use. A missing key is reported as (zero, false, nil).
type Store interface {
	Load(ctx context.Context, key models.CacheKey) (models.CacheEntry, bool, error)
	Save(ctx context.Context, key models.CacheKey, entry models.CacheEntry) error
}

// Clearer is implemented by stores that can drop every entry at once.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// MemoryStore keeps entries in a process-local map.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[models.CacheKey]models.CacheEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[models.CacheKey]models.CacheEntry)}
}

// Load returns a copy of the stored entry.
func (s *MemoryStore) Load(_ context.Context, key models.CacheKey) (models.CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return models.CacheEntry{}, false, nil
	}
	return entry.Clone(), true, nil
}

// Save overwrites the entry for key.
func (s *MemoryStore) Save(_ context.Context, key models.CacheKey, entry models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry.Clone()
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every entry and returns how many were removed.
func (s *MemoryStore) Clear(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = make(map[models.CacheKey]models.CacheEntry)
	return n, nil
}

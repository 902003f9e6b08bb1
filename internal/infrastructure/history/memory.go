package history

import (
	"context"
	"sync"

	"github.com/freshcheck/backend/internal/domain"
)

// MemoryStore keeps scan history in process memory. History is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]domain.HistoryEntry
}

// NewMemoryStore creates an empty in-memory history store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]domain.HistoryEntry)}
}

// Load returns a copy of the owner's history, empty when there is none
func (s *MemoryStore) Load(ctx context.Context, owner string) ([]domain.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.entries[owner]
	out := make([]domain.HistoryEntry, len(stored))
	copy(out, stored)
	return out, nil
}

// Save replaces the owner's history
func (s *MemoryStore) Save(ctx context.Context, owner string, entries []domain.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]domain.HistoryEntry, len(entries))
	copy(stored, entries)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[owner] = stored
	return nil
}

// Delete removes the owner's history
func (s *MemoryStore) Delete(ctx context.Context, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, owner)
	return nil
}

// Close is a no-op so MemoryStore and PebbleStore share a lifecycle
func (s *MemoryStore) Close() error {
	return nil
}

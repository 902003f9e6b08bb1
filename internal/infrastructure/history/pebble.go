package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/freshcheck/backend/internal/domain"
)

const keyPrefix = "history:"

// PebbleStore persists scan history in a Pebble key-value store, one JSON
// document per owner under "history:<owner>".
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (or creates) the store at dir
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	return openPebbleStore(filepath.Clean(dir), nil)
}

// openPebbleStore allows tests to run against an in-memory filesystem
func openPebbleStore(dir string, fs vfs.FS) (*PebbleStore, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func historyKey(owner string) []byte {
	return []byte(keyPrefix + owner)
}

// Load returns the owner's history, empty when nothing was saved
func (s *PebbleStore) Load(ctx context.Context, owner string) ([]domain.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, closer, err := s.db.Get(historyKey(owner))
	if errors.Is(err, pebble.ErrNotFound) {
		return []domain.HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()

	var entries []domain.HistoryEntry
	if err := json.Unmarshal(value, &entries); err != nil {
		return nil, fmt.Errorf("decode history for %q: %w", owner, err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

// Save replaces the owner's history
func (s *PebbleStore) Save(ctx context.Context, owner string, entries []domain.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.db.Set(historyKey(owner), encoded, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

// Delete removes the owner's history. Deleting a missing owner is not an error.
func (s *PebbleStore) Delete(ctx context.Context, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Delete(historyKey(owner), pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying database
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

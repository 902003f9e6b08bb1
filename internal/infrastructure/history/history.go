// Package history provides the scan history backends.
package history

import (
	"fmt"
	"io"

	"github.com/freshcheck/backend/internal/domain"
)

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
)

// Store is a history backend that holds resources until closed
type Store interface {
	domain.HistoryStore
	io.Closer
}

// Open creates the backend named by backend. path is only used by the pebble backend.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendPebble:
		if path == "" {
			return nil, fmt.Errorf("%w: pebble history backend requires a path", domain.ErrInvalidRequest)
		}
		return OpenPebbleStore(path)
	default:
		return nil, fmt.Errorf("%w: unknown history backend %q", domain.ErrInvalidRequest, backend)
	}
}

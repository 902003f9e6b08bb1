package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Values are opaque bytes; callers choose the encoding.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// FoodFactsClient defines the interface for interacting with Open Food Facts
type FoodFactsClient interface {
	// LookupProduct performs a single lookup of barcode against the API rooted at baseURL.
	// It returns ErrProductNotFound when the source confirms absence and an error
	// wrapping ErrUpstreamFailure for every other failure.
	LookupProduct(ctx context.Context, baseURL, barcode string) (*Product, error)
	Search(ctx context.Context, query string) ([]Product, error)
	SearchByCategory(ctx context.Context, categoryTag string) ([]Product, error)
}

// HistoryStore persists the scan history of one owner (device)
type HistoryStore interface {
	Load(ctx context.Context, owner string) ([]HistoryEntry, error)
	Save(ctx context.Context, owner string, entries []HistoryEntry) error
	Delete(ctx context.Context, owner string) error
}

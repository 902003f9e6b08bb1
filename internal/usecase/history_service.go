package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/freshcheck/backend/internal/domain"
	"github.com/freshcheck/backend/internal/infrastructure/metrics"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultHistorySize is how many scans are kept per owner
	DefaultHistorySize = 50

	// AnonymousOwner is used when a request does not identify its device
	AnonymousOwner = "anonymous"
)

// HistoryService keeps the most recent scans of each owner, newest first, one entry per product
type HistoryService struct {
	store      domain.HistoryStore
	maxEntries int
	now        func() time.Time
	metrics    *metrics.Registry
	log        *logrus.Entry

	// mu serializes read-modify-write cycles against the store
	mu sync.Mutex
}

// NewHistoryService creates a history service. maxEntries <= 0 selects DefaultHistorySize
// and reg may be nil.
func NewHistoryService(store domain.HistoryStore, maxEntries int, reg *metrics.Registry) *HistoryService {
	if maxEntries <= 0 {
		maxEntries = DefaultHistorySize
	}
	return &HistoryService{
		store:      store,
		maxEntries: maxEntries,
		now:        time.Now,
		metrics:    reg,
		log:        logrus.WithField("component", "history"),
	}
}

func normalizeOwner(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return AnonymousOwner
	}
	return owner
}

// Record puts a snapshot of product at the head of owner's history, dropping an
// older entry for the same code and anything beyond the size limit
func (s *HistoryService) Record(ctx context.Context, owner string, product *domain.Product) ([]domain.HistoryEntry, error) {
	if product == nil || product.Code == "" {
		return nil, fmt.Errorf("%w: product has no code", domain.ErrInvalidRequest)
	}
	owner = normalizeOwner(owner)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.Load(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrHistoryUnavailable, err)
	}

	updated := make([]domain.HistoryEntry, 0, min(len(existing)+1, s.maxEntries))
	updated = append(updated, domain.NewHistoryEntry(product, s.now()))
	for _, e := range existing {
		if len(updated) == s.maxEntries {
			break
		}
		if e.Code == product.Code {
			continue
		}
		updated = append(updated, e)
	}

	if err := s.store.Save(ctx, owner, updated); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrHistoryUnavailable, err)
	}

	if s.metrics != nil {
		s.metrics.HistoryRecorded.Inc()
	}
	s.log.WithFields(logrus.Fields{"owner": owner, "code": product.Code, "size": len(updated)}).Debug("scan recorded")

	return updated, nil
}

// List returns owner's history, newest first
func (s *HistoryService) List(ctx context.Context, owner string) ([]domain.HistoryEntry, error) {
	entries, err := s.store.Load(ctx, normalizeOwner(owner))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrHistoryUnavailable, err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

// Clear removes owner's history
func (s *HistoryService) Clear(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, normalizeOwner(owner)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrHistoryUnavailable, err)
	}
	return nil
}

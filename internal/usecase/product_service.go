package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/freshcheck/backend/internal/domain"
	"github.com/freshcheck/backend/internal/infrastructure/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultProductCacheTTL is how long a resolved product is served from cache
	DefaultProductCacheTTL = 720 * time.Hour

	SourceOpenFoodFacts = "OpenFoodFacts"
	SourceCache         = "Cache"

	productCacheKeyPrefix = "product:"
)

// ProductServiceConfig holds configuration for the product service
type ProductServiceConfig struct {
	CacheTTL time.Duration
}

// ProductService resolves, scores and enriches products for the product page
type ProductService struct {
	cache        domain.CacheRepository
	client       domain.FoodFactsClient
	resolver     *Resolver
	scorer       *Scorer
	alternatives *AlternativesFinder
	history      *HistoryService
	cacheTTL     time.Duration
	metrics      *metrics.Registry
	log          *logrus.Entry

	inflight singleflight.Group
}

// NewProductService creates a product service. history and reg may be nil.
func NewProductService(
	cache domain.CacheRepository,
	client domain.FoodFactsClient,
	resolver *Resolver,
	scorer *Scorer,
	history *HistoryService,
	config ProductServiceConfig,
	reg *metrics.Registry,
) *ProductService {
	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultProductCacheTTL
	}

	return &ProductService{
		cache:        cache,
		client:       client,
		resolver:     resolver,
		scorer:       scorer,
		alternatives: NewAlternativesFinder(client, scorer),
		history:      history,
		cacheTTL:     cacheTTL,
		metrics:      reg,
		log:          logrus.WithField("component", "product_service"),
	}
}

// GetProduct returns the product page for a raw barcode.
// Flow: check cache -> resolve through the fallback chain -> cache -> score, analyze, suggest.
// When owner is not empty the scan is recorded in the owner's history.
func (s *ProductService) GetProduct(ctx context.Context, rawBarcode, owner string) (*domain.ProductView, error) {
	barcode := NormalizeBarcode(rawBarcode)
	if barcode == "" {
		return nil, fmt.Errorf("%w: empty barcode", domain.ErrInvalidRequest)
	}

	source := SourceCache
	product, err := s.getFromCache(ctx, barcode)
	if err != nil {
		source = SourceOpenFoodFacts
		product, err = s.resolve(ctx, barcode)
		if err != nil {
			return nil, err
		}
	}

	view := s.buildView(ctx, product, source)

	if owner != "" && s.history != nil {
		if _, err := s.history.Record(ctx, owner, product); err != nil {
			s.log.WithField("barcode", barcode).WithError(err).Warn("failed to record scan")
		}
	}

	return view, nil
}

// resolve runs the fallback chain once per barcode no matter how many callers wait on it.
// The shared chain is not tied to any single caller's cancellation; each caller still
// stops waiting when its own context ends.
func (s *ProductService) resolve(ctx context.Context, barcode string) (*domain.Product, error) {
	ch := s.inflight.DoChan(barcode, func() (any, error) {
		product, err := s.resolver.Resolve(context.WithoutCancel(ctx), barcode)
		if err != nil {
			return nil, err
		}
		if err := s.setInCache(context.WithoutCancel(ctx), barcode, product); err != nil {
			s.log.WithField("barcode", barcode).WithError(err).Warn("failed to cache product")
		}
		return product, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Product), nil
	}
}

func (s *ProductService) buildView(ctx context.Context, product *domain.Product, source string) *domain.ProductView {
	result := s.scorer.Score(product)
	return &domain.ProductView{
		Product:      product,
		Score:        result,
		Color:        ScoreColor(result.Score),
		Analysis:     AnalyzeProduct(product),
		Alternatives: s.alternatives.ForProduct(ctx, product, result),
		Source:       source,
	}
}

// Search runs a free-text product search and scores every hit.
// Quantities and packaging words are stripped from the query first.
func (s *ProductService) Search(ctx context.Context, query string) ([]domain.ScoredProduct, error) {
	query = CleanSearchQuery(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", domain.ErrInvalidRequest)
	}

	products, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredProduct, 0, len(products))
	for i := range products {
		scored = append(scored, scoreProduct(s.scorer, products[i]))
	}
	return scored, nil
}

// Alternatives returns the qualified alternatives in a category, excluding currentCode
func (s *ProductService) Alternatives(ctx context.Context, categoryTag, currentCode string) ([]domain.ScoredProduct, error) {
	if strings.TrimSpace(categoryTag) == "" {
		return nil, fmt.Errorf("%w: empty category", domain.ErrInvalidRequest)
	}
	return s.alternatives.Find(ctx, categoryTag, NormalizeBarcode(currentCode)), nil
}

// History exposes the scan history, nil when history is disabled
func (s *ProductService) History() *HistoryService {
	return s.history
}

func productCacheKey(barcode string) string {
	return productCacheKeyPrefix + barcode
}

// getFromCache retrieves a product from cache. Undecodable entries count as misses.
func (s *ProductService) getFromCache(ctx context.Context, barcode string) (*domain.Product, error) {
	value, err := s.cache.Get(ctx, productCacheKey(barcode))
	if err != nil {
		s.observeCache(false)
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.log.WithField("barcode", barcode).WithError(err).Warn("cache read failed")
		}
		return nil, err
	}

	var product domain.Product
	if err := json.Unmarshal(value, &product); err != nil {
		s.observeCache(false)
		s.log.WithField("barcode", barcode).WithError(err).Warn("discarding undecodable cache entry")
		return nil, domain.ErrCacheMiss
	}

	s.observeCache(true)
	return &product, nil
}

// setInCache stores the raw product; scores are recomputed on every view
func (s *ProductService) setInCache(ctx context.Context, barcode string, product *domain.Product) error {
	encoded, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	return s.cache.Set(ctx, productCacheKey(barcode), encoded, s.cacheTTL)
}

func (s *ProductService) observeCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHits.Inc()
	} else {
		s.metrics.CacheMisses.Inc()
	}
}

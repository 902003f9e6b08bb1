package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/freshcheck/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu        sync.Mutex
	data      map[string][]byte
	getError  error
	setError  error
	getCalled bool
	setCalled bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string][]byte),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// lookupCall records one LookupProduct invocation
type lookupCall struct {
	source  string
	barcode string
}

// MockFoodFactsClient is a mock implementation of domain.FoodFactsClient.
// Products are keyed by source and barcode; anything else is not found unless
// failures names the source.
type MockFoodFactsClient struct {
	mu       sync.Mutex
	products map[string]map[string]*domain.Product
	failures map[string]error
	calls    []lookupCall
	onLookup func(ctx context.Context, source, barcode string)

	searchResult   []domain.Product
	searchError    error
	searchQueries  []string
	categoryResult []domain.Product
	categoryError  error
	categoryCalls  []string
}

func NewMockFoodFactsClient() *MockFoodFactsClient {
	return &MockFoodFactsClient{
		products: make(map[string]map[string]*domain.Product),
		failures: make(map[string]error),
	}
}

func (m *MockFoodFactsClient) addProduct(source, barcode string, p *domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.products[source] == nil {
		m.products[source] = make(map[string]*domain.Product)
	}
	m.products[source][barcode] = p
}

func (m *MockFoodFactsClient) LookupProduct(ctx context.Context, source, barcode string) (*domain.Product, error) {
	m.mu.Lock()
	m.calls = append(m.calls, lookupCall{source: source, barcode: barcode})
	hook := m.onLookup
	m.mu.Unlock()

	if hook != nil {
		hook(ctx, source, barcode)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failures[source]; ok {
		return nil, err
	}
	if p, ok := m.products[source][barcode]; ok {
		return p, nil
	}
	return nil, domain.ErrProductNotFound
}

func (m *MockFoodFactsClient) Search(ctx context.Context, query string) ([]domain.Product, error) {
	m.mu.Lock()
	m.searchQueries = append(m.searchQueries, query)
	m.mu.Unlock()
	if m.searchError != nil {
		return nil, m.searchError
	}
	return m.searchResult, nil
}

func (m *MockFoodFactsClient) SearchByCategory(ctx context.Context, categoryTag string) ([]domain.Product, error) {
	m.mu.Lock()
	m.categoryCalls = append(m.categoryCalls, categoryTag)
	m.mu.Unlock()
	if m.categoryError != nil {
		return nil, m.categoryError
	}
	return m.categoryResult, nil
}

func (m *MockFoodFactsClient) lookupCalls() []lookupCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]lookupCall, len(m.calls))
	copy(out, m.calls)
	return out
}

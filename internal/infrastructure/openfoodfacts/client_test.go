package openfoodfacts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/freshcheck/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(searchURL string) *Client {
	client := NewClient(ClientConfig{SearchURL: searchURL, Timeout: 2 * time.Second})
	client.backoff = func(int) time.Duration { return time.Millisecond }
	return client
}

func TestNewClient(t *testing.T) {
	client := NewClient(ClientConfig{SearchURL: "https://world.openfoodfacts.org/cgi/search.pl"})

	assert.NotNil(t, client)
	assert.Equal(t, "https://world.openfoodfacts.org/cgi/search.pl", client.searchURL)
	assert.Equal(t, DefaultUserAgent, client.userAgent)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
	assert.NotNil(t, client.productLimiter)
	assert.NotNil(t, client.searchLimiter)
	assert.False(t, client.debug)
}

func TestNewClient_CustomValues(t *testing.T) {
	client := NewClient(ClientConfig{
		UserAgent:             "Test/0.1",
		Timeout:               time.Second,
		ProductReadsPerMinute: 100,
		SearchesPerMinute:     10,
	})

	assert.Equal(t, "Test/0.1", client.userAgent)
	assert.Equal(t, time.Second, client.httpClient.Timeout)
	assert.Equal(t, 100, client.productLimiter.Burst())
	assert.Equal(t, 10, client.searchLimiter.Burst())
}

func TestSetDebug(t *testing.T) {
	client := NewClient(ClientConfig{})

	assert.False(t, client.debug)

	client.SetDebug(true)
	assert.True(t, client.debug)

	client.SetDebug(false)
	assert.False(t, client.debug)
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestLookupProduct_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/product/3017620422003.json", r.URL.Path)
		assert.Equal(t, productFields, r.URL.Query().Get("fields"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"code": "3017620422003",
			"status": 1,
			"product": {
				"code": "3017620422003",
				"product_name": "Nutella",
				"brands": "Ferrero",
				"nutriscore_grade": "e",
				"nova_group": 4,
				"additives_n": 1,
				"additives_tags": ["en:e322"],
				"nutrient_levels": {"sugars": "high", "fat": "high"},
				"nutriments": {"sugars_100g": 56.3},
				"categories_tags": ["en:spreads", "en:cocoa-and-hazelnuts-spreads"]
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient("")
	product, err := client.LookupProduct(context.Background(), server.URL+"/api/v2", "3017620422003")

	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "3017620422003", product.Code)
	assert.Equal(t, "Nutella", product.ProductName)
	assert.Equal(t, "e", product.NutriscoreGrade)
	require.NotNil(t, product.NovaGroup)
	assert.Equal(t, 4, *product.NovaGroup)
	assert.Equal(t, 1, product.AdditiveCount())
	assert.Equal(t, domain.LevelHigh, product.NutrientLevel(domain.NutrientSugars))
	assert.Equal(t, "en:cocoa-and-hazelnuts-spreads", product.MostSpecificCategory())
}

func TestLookupProduct_FillsMissingCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":1,"product":{"product_name":"No code"}}`))
	}))
	defer server.Close()

	product, err := newTestClient("").LookupProduct(context.Background(), server.URL, "123")

	require.NoError(t, err)
	assert.Equal(t, "123", product.Code)
}

func TestLookupProduct_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "404 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "status zero",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":"1","status":0,"status_verbose":"product not found"}`))
			},
		},
		{
			name: "missing product payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":"1","status":1}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			product, err := newTestClient("").LookupProduct(context.Background(), server.URL, "1")

			assert.Nil(t, product)
			assert.ErrorIs(t, err, domain.ErrProductNotFound)
			assert.NotErrorIs(t, err, domain.ErrUpstreamFailure)
		})
	}
}

func TestLookupProduct_UpstreamFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("boom"))
			},
		},
		{
			name: "forbidden",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>maintenance</html>"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			product, err := newTestClient("").LookupProduct(context.Background(), server.URL, "1")

			assert.Nil(t, product)
			assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
			assert.NotErrorIs(t, err, domain.ErrProductNotFound)
		})
	}
}

func TestLookupProduct_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(ClientConfig{Timeout: 50 * time.Millisecond})
	product, err := client.LookupProduct(context.Background(), server.URL, "1")

	assert.Nil(t, product)
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
	assert.True(t, isTimeout(err), "expected a timeout error, got %v", err)
}

func TestLookupProduct_RateLimited(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{ProductReadsPerMinute: 1})

	_, err := client.LookupProduct(context.Background(), server.URL, "1")
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	// The next token is a minute away, past this deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	product, err := client.LookupProduct(ctx, server.URL, "1")

	assert.Nil(t, product)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestLookupProduct_EscapesBarcode(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient("").LookupProduct(context.Background(), server.URL+"/", "12/34")

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, "/product/12%2F34.json", gotPath)
}

func TestSearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "nutella", q.Get("search_terms"))
		assert.Equal(t, "1", q.Get("search_simple"))
		assert.Equal(t, "process", q.Get("action"))
		assert.Equal(t, "1", q.Get("json"))
		assert.Equal(t, "20", q.Get("page_size"))
		assert.Equal(t, searchFields, q.Get("fields"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))

		json.NewEncoder(w).Encode(domain.SearchResponse{
			Products: []domain.Product{
				{Code: "1", ProductName: "Nutella"},
				{Code: "2", ProductName: "Nutella B-ready"},
			},
		})
	}))
	defer server.Close()

	products, err := newTestClient(server.URL).Search(context.Background(), "  nutella ")

	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, "Nutella", products[0].ProductName)
}

func TestSearch_EmptyQuery(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	products, err := newTestClient(server.URL).Search(context.Background(), "   ")

	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSearch_NoProductsField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":0}`))
	}))
	defer server.Close()

	products, err := newTestClient(server.URL).Search(context.Background(), "nothing")

	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestSearch_ServerError_Retries(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(domain.SearchResponse{
			Products: []domain.Product{{Code: "1", ProductName: "Success after retry"}},
		})
	}))
	defer server.Close()

	products, err := newTestClient(server.URL).Search(context.Background(), "retry-test")

	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestSearch_TooManyRequests_Retries(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(domain.SearchResponse{
			Products: []domain.Product{{Code: "1"}},
		})
	}))
	defer server.Close()

	products, err := newTestClient(server.URL).Search(context.Background(), "rate-limit-test")

	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestSearch_ClientError_NoRetry(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	products, err := newTestClient(server.URL).Search(context.Background(), "bad-request")

	assert.Nil(t, products)
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestSearch_AllRetriesFail(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	products, err := newTestClient(server.URL).Search(context.Background(), "all-fail")

	assert.Nil(t, products)
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
	assert.Equal(t, int32(maxSearchAttempts), atomic.LoadInt32(&attempts))
}

func TestSearch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	products, err := newTestClient(server.URL).Search(context.Background(), "invalid-json")

	assert.Nil(t, products)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestSearch_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	products, err := newTestClient(server.URL).Search(ctx, "timeout-test")

	assert.Nil(t, products)
	assert.Error(t, err)
}

func TestSearch_RequestCreationError(t *testing.T) {
	products, err := newTestClient("://invalid-url").Search(context.Background(), "test")

	assert.Nil(t, products)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create request")
}

func TestSearchByCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "en:cocoa-and-hazelnuts-spreads", q.Get("categories_tags"))
		assert.Equal(t, "nutriscore_score", q.Get("sort_by"))
		assert.Equal(t, "5", q.Get("page_size"))
		assert.Equal(t, "process", q.Get("action"))
		assert.Equal(t, alternativeFields, q.Get("fields"))
		assert.Empty(t, q.Get("search_terms"))

		json.NewEncoder(w).Encode(domain.SearchResponse{
			Products: []domain.Product{
				{Code: "A", ProductName: "Hazelnut spread", NutriscoreGrade: "c"},
			},
		})
	}))
	defer server.Close()

	products, err := newTestClient(server.URL).SearchByCategory(context.Background(), "en:cocoa-and-hazelnuts-spreads")

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "A", products[0].Code)
}

func TestSearchByCategory_EmptyTag(t *testing.T) {
	products, err := newTestClient("http://unused.invalid").SearchByCategory(context.Background(), "")

	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestDebugLog(t *testing.T) {
	client := NewClient(ClientConfig{})

	// Should not panic in either mode
	client.debug = false
	client.debugLog("test message %s", "arg")

	client.debug = true
	client.debugLog("test message %s", "arg")
}

func TestReadLimitedBody(t *testing.T) {
	t.Run("reads within limit", func(t *testing.T) {
		body, err := readLimitedBody(strings.NewReader("short content"), 1000)
		require.NoError(t, err)
		assert.Equal(t, "short content", string(body))
	})

	t.Run("truncates beyond limit", func(t *testing.T) {
		body, err := readLimitedBody(strings.NewReader(strings.Repeat("0123456789", 100)), 100)
		require.NoError(t, err)
		assert.Len(t, body, 100)
	})
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(http.StatusTooManyRequests))
	assert.True(t, retryable(http.StatusInternalServerError))
	assert.True(t, retryable(http.StatusServiceUnavailable))
	assert.False(t, retryable(http.StatusBadRequest))
	assert.False(t, retryable(http.StatusNotFound))
}

package openfoodfacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/freshcheck/backend/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Field sets requested from upstream to keep payloads small
const (
	productFields     = "code,product_name,brands,image_url,image_front_small_url,nutriscore_grade,ecoscore_grade,nova_group,nutrient_levels,nutriments,ingredients_text,additives_n,additives_tags,categories_tags,quantity,labels_tags"
	searchFields      = "code,product_name,brands,image_url,image_front_small_url,nutriscore_grade,nova_group,additives_n,labels_tags"
	alternativeFields = "code,product_name,brands,image_url,nutriscore_grade,nova_group,additives_n,labels_tags"
)

const (
	// DefaultUserAgent identifies the app to Open Food Facts, as its usage policy requires
	DefaultUserAgent = "FreshCheck/1.0 (nutrition-scanner)"

	// DefaultTimeout bounds a single upstream request
	DefaultTimeout = 5 * time.Second

	searchPageSize      = "20"
	alternativePageSize = "5"
	maxSearchAttempts   = 3
	maxErrorBodyBytes   = 512
)

// ClientConfig holds Open Food Facts client settings
type ClientConfig struct {
	SearchURL string
	UserAgent string
	Timeout   time.Duration

	// Requests per minute; zero or negative disables client-side limiting
	ProductReadsPerMinute int
	SearchesPerMinute     int
}

// Client handles communication with the Open Food Facts API
type Client struct {
	httpClient     *http.Client
	searchURL      string
	userAgent      string
	productLimiter *rate.Limiter
	searchLimiter  *rate.Limiter
	backoff        func(attempt int) time.Duration
	debug          bool
	log            *logrus.Entry
}

// NewClient creates a new Open Food Facts API client
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		searchURL:      cfg.SearchURL,
		userAgent:      userAgent,
		productLimiter: newPerMinuteLimiter(cfg.ProductReadsPerMinute),
		searchLimiter:  newPerMinuteLimiter(cfg.SearchesPerMinute),
		backoff:        exponentialBackoff,
		log:            logrus.WithField("component", "openfoodfacts"),
	}
}

// newPerMinuteLimiter allows perMinute requests per minute with a burst of one minute's quota
func newPerMinuteLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute)
}

// SetDebug enables verbose request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		c.log.Infof(format, args...)
	}
}

// exponentialBackoff returns the wait before retrying after the given attempt (1-based)
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// readLimitedBody reads at most limit bytes of body, for error logging
func readLimitedBody(body io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, limit))
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.debugLog("GET %s", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamFailure, err)
	}

	return resp, nil
}

// LookupProduct fetches a single product record from the API rooted at baseURL.
// It never retries: the caller's fallback chain decides what to try next.
func (c *Client) LookupProduct(ctx context.Context, baseURL, barcode string) (*domain.Product, error) {
	log := c.log.WithFields(logrus.Fields{"source": baseURL, "barcode": barcode})

	if err := c.productLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", domain.ErrUpstreamFailure, domain.ErrRateLimited, err)
	}

	reqURL := fmt.Sprintf("%s/product/%s.json?fields=%s",
		strings.TrimRight(baseURL, "/"), url.PathEscape(barcode), productFields)

	resp, err := c.doRequest(ctx, reqURL)
	if err != nil {
		if isTimeout(err) {
			log.Warn("request timeout")
		} else {
			log.WithError(err).Warn("request failed")
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := readLimitedBody(resp.Body, maxErrorBodyBytes)
		log.WithField("status", resp.StatusCode).Errorf("lookup failed: %s", string(body))
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamFailure, resp.StatusCode)
	}

	var lookup domain.LookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		log.WithError(err).Error("JSON decode error")
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrUpstreamFailure, err)
	}

	if lookup.Status == 0 || lookup.Product == nil {
		return nil, domain.ErrProductNotFound
	}

	product := lookup.Product
	if product.Code == "" {
		product.Code = barcode
	}

	log.WithField("product_name", product.ProductName).Info("product fetched")
	return product, nil
}

// Search runs a free-text product search
func (c *Client) Search(ctx context.Context, query string) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Product{}, nil
	}

	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", searchPageSize)
	params.Set("fields", searchFields)

	products, err := c.fetchProducts(ctx, params)
	if err != nil {
		return nil, err
	}

	c.log.WithField("query", query).Infof("found %d results", len(products))
	return products, nil
}

// SearchByCategory returns products of a category, best Nutri-Score first
func (c *Client) SearchByCategory(ctx context.Context, categoryTag string) ([]domain.Product, error) {
	categoryTag = strings.TrimSpace(categoryTag)
	if categoryTag == "" {
		return []domain.Product{}, nil
	}

	params := url.Values{}
	params.Set("action", "process")
	params.Set("categories_tags", categoryTag)
	params.Set("sort_by", "nutriscore_score")
	params.Set("page_size", alternativePageSize)
	params.Set("json", "1")
	params.Set("fields", alternativeFields)

	return c.fetchProducts(ctx, params)
}

// fetchProducts calls the search endpoint, retrying transient failures
func (c *Client) fetchProducts(ctx context.Context, params url.Values) ([]domain.Product, error) {
	reqURL := fmt.Sprintf("%s?%s", c.searchURL, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= maxSearchAttempts; attempt++ {
		if err := c.searchLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w: %v", domain.ErrUpstreamFailure, domain.ErrRateLimited, err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil || !errors.Is(err, domain.ErrUpstreamFailure) {
				return nil, err
			}
			c.log.WithError(err).Warnf("search request error (attempt %d)", attempt)
			lastErr = err
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := readLimitedBody(resp.Body, maxErrorBodyBytes)
			resp.Body.Close()
			c.log.WithField("status", resp.StatusCode).Errorf("search failed (attempt %d): %s", attempt, string(body))

			lastErr = fmt.Errorf("%w: status %d", domain.ErrUpstreamFailure, resp.StatusCode)
			if !retryable(resp.StatusCode) {
				return nil, lastErr
			}
			c.sleep(ctx, attempt)
			continue
		}

		var searchResp domain.SearchResponse
		err = json.NewDecoder(resp.Body).Decode(&searchResp)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrUpstreamFailure, err)
		}

		if searchResp.Products == nil {
			return []domain.Product{}, nil
		}
		return searchResp.Products, nil
	}

	c.log.Error("all search attempts failed")
	return nil, lastErr
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	if attempt >= maxSearchAttempts {
		return
	}
	t := time.NewTimer(c.backoff(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// retryable reports whether a search status code is worth retrying
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

package domain

import "errors"

var (
	// ErrProductNotFound is returned when no source knows the product
	ErrProductNotFound = errors.New("product not found")

	// ErrUpstreamFailure is returned when an Open Food Facts request fails for a reason
	// other than the product being absent (HTTP error, timeout, malformed body)
	ErrUpstreamFailure = errors.New("open food facts request failed")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrHistoryUnavailable is returned when the history backend cannot be read or written
	ErrHistoryUnavailable = errors.New("history store unavailable")
)

package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/freshcheck/backend/internal/domain"
	"github.com/freshcheck/backend/internal/infrastructure/metrics"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultAttemptTimeout bounds each lookup attempt of the fallback chain
	DefaultAttemptTimeout = 5 * time.Second

	ean13Length        = 13
	minTrimmableLength = 8
)

// ResolverConfig holds the upstream sources of the fallback chain
type ResolverConfig struct {
	PrimaryURL     string
	MirrorURLs     []string
	AttemptTimeout time.Duration
}

// lookupStrategy is one step of the fallback chain: a barcode variant against one source
type lookupStrategy struct {
	name    string
	source  string
	barcode string
}

// Resolver maps raw barcodes to products, tolerating upstream flakiness and
// barcode format irregularities
type Resolver struct {
	client         domain.FoodFactsClient
	primary        string
	mirrors        []string
	attemptTimeout time.Duration
	metrics        *metrics.Registry
	log            *logrus.Entry
}

// NewResolver creates a resolver. Mirrors equal to the primary source are dropped.
// reg may be nil.
func NewResolver(client domain.FoodFactsClient, config ResolverConfig, reg *metrics.Registry) *Resolver {
	timeout := config.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}

	primary := strings.TrimRight(config.PrimaryURL, "/")
	seen := map[string]bool{primary: true}
	mirrors := make([]string, 0, len(config.MirrorURLs))
	for _, m := range config.MirrorURLs {
		m = strings.TrimRight(strings.TrimSpace(m), "/")
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		mirrors = append(mirrors, m)
	}

	return &Resolver{
		client:         client,
		primary:        primary,
		mirrors:        mirrors,
		attemptTimeout: timeout,
		metrics:        reg,
		log:            logrus.WithField("component", "resolver"),
	}
}

// NormalizeBarcode strips whitespace and hyphens from a raw barcode
func NormalizeBarcode(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, raw)
}

// padBarcode left-pads a barcode shorter than 13 characters with zeroes
func padBarcode(barcode string) (string, bool) {
	if len(barcode) >= ean13Length {
		return "", false
	}
	return strings.Repeat("0", ean13Length-len(barcode)) + barcode, true
}

// trimBarcode strips the leading zeroes of a barcode longer than 8 characters
func trimBarcode(barcode string) (string, bool) {
	if !strings.HasPrefix(barcode, "0") || len(barcode) <= minTrimmableLength {
		return "", false
	}
	trimmed := strings.TrimLeft(barcode, "0")
	return trimmed, trimmed != ""
}

// strategies returns the fallback chain for a normalized barcode, in the order it is tried
func (r *Resolver) strategies(barcode string) []lookupStrategy {
	chain := []lookupStrategy{{name: "primary", source: r.primary, barcode: barcode}}

	for _, mirror := range r.mirrors {
		chain = append(chain, lookupStrategy{name: "mirror:" + mirrorName(mirror), source: mirror, barcode: barcode})
	}
	if padded, ok := padBarcode(barcode); ok {
		chain = append(chain, lookupStrategy{name: "padded", source: r.primary, barcode: padded})
	}
	if trimmed, ok := trimBarcode(barcode); ok {
		chain = append(chain, lookupStrategy{name: "trimmed", source: r.primary, barcode: trimmed})
	}

	return chain
}

// mirrorName returns a short label for a mirror URL (its first host label)
func mirrorName(mirror string) string {
	u, err := url.Parse(mirror)
	if err != nil || u.Hostname() == "" {
		return mirror
	}
	host := u.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

// Resolve returns the product for a raw barcode.
//
// The chain stops at the first success. When it is exhausted the error is
// domain.ErrProductNotFound; if any attempt failed for a reason other than a confirmed
// absence the error additionally matches domain.ErrUpstreamFailure, so callers can offer
// a retry instead of a plain not-found page.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*domain.Product, error) {
	barcode := NormalizeBarcode(raw)
	if barcode == "" {
		return nil, fmt.Errorf("%w: empty barcode", domain.ErrInvalidRequest)
	}

	start := time.Now()
	product, err := r.firstSuccess(ctx, barcode, r.strategies(barcode))
	r.observeResolution(err, time.Since(start))
	return product, err
}

// firstSuccess runs the strategies sequentially and returns the first product found
func (r *Resolver) firstSuccess(ctx context.Context, barcode string, chain []lookupStrategy) (*domain.Product, error) {
	log := r.log.WithField("barcode", barcode)
	failures := 0

	for _, s := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		product, err := r.attempt(ctx, s)
		switch {
		case err == nil:
			log.WithFields(logrus.Fields{"strategy": s.name, "source": s.source}).Info("product resolved")
			return product, nil
		case ctx.Err() != nil:
			// The caller gave up; the attempt's error says nothing about the product
			return nil, ctx.Err()
		case errors.Is(err, domain.ErrProductNotFound):
			log.WithField("strategy", s.name).Debug("not found, trying next source")
		default:
			failures++
			log.WithField("strategy", s.name).WithError(err).Warn("lookup attempt failed, trying next source")
		}
	}

	log.WithField("failed_attempts", failures).Info("product not found in any source")
	if failures > 0 {
		return nil, fmt.Errorf("%w: %w: %d of %d lookups failed",
			domain.ErrProductNotFound, domain.ErrUpstreamFailure, failures, len(chain))
	}
	return nil, domain.ErrProductNotFound
}

// attempt performs one bounded lookup
func (r *Resolver) attempt(ctx context.Context, s lookupStrategy) (*domain.Product, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	product, err := r.client.LookupProduct(attemptCtx, s.source, s.barcode)
	if err == nil && product == nil {
		err = domain.ErrProductNotFound
	}
	r.observeAttempt(s.name, err)
	return product, err
}

func (r *Resolver) observeAttempt(strategy string, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.LookupAttempts.WithLabelValues(strategy, outcomeOf(err)).Inc()
}

func (r *Resolver) observeResolution(err error, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.Resolutions.WithLabelValues(outcomeOf(err)).Inc()
	r.metrics.ResolutionLatency.Observe(elapsed.Seconds())
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeFound
	case errors.Is(err, context.Canceled):
		return metrics.OutcomeCanceled
	case errors.Is(err, domain.ErrUpstreamFailure):
		return metrics.OutcomeFailed
	case errors.Is(err, domain.ErrProductNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeFailed
	}
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// Registry holds the service's collectors on a private Prometheus registry,
// so tests can build one per case without touching the global default.
type Registry struct {
	reg *prometheus.Registry

	// Resolver
	LookupAttempts    *prometheus.CounterVec // labels: strategy, outcome
	Resolutions       *prometheus.CounterVec // labels: outcome
	ResolutionLatency prometheus.Histogram

	// Product service
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// History
	HistoryRecorded prometheus.Counter
}

// NewRegistry creates a Registry with every collector registered
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "freshcheck_lookup_attempts_total",
		Help: "Single upstream lookup attempts by fallback strategy and outcome.",
	}, []string{"strategy", "outcome"})
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "freshcheck_resolutions_total",
		Help: "Barcode resolutions by final outcome.",
	}, []string{"outcome"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "freshcheck_resolution_seconds",
		Help:    "Time spent walking the fallback chain for one barcode.",
		Buckets: prometheus.DefBuckets,
	})
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freshcheck_product_cache_hits_total",
		Help: "Product reads served from the cache.",
	})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freshcheck_product_cache_misses_total",
		Help: "Product reads that had to be resolved upstream.",
	})
	historyRecorded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "freshcheck_history_recorded_total",
		Help: "Products recorded in a scan history.",
	})

	r.MustRegister(attempts, resolutions, latency, cacheHits, cacheMisses, historyRecorded)
	return &Registry{
		reg:               r,
		LookupAttempts:    attempts,
		Resolutions:       resolutions,
		ResolutionLatency: latency,
		CacheHits:         cacheHits,
		CacheMisses:       cacheMisses,
		HistoryRecorded:   historyRecorded,
	}
}

// TrackCacheSize exposes the number of cached entries, read from size at scrape time.
// Call it once per registry.
func (r *Registry) TrackCacheSize(size func() int) {
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "freshcheck_product_cache_entries",
		Help: "Entries currently held by the product cache.",
	}, func() float64 {
		return float64(size())
	}))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

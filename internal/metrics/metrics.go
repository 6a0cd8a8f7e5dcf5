// Package metrics declares the prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nextpage_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nextpage_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	HTTPRateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nextpage_http_rate_limit_hits_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)

	// Catalog
	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nextpage_catalog_requests_total",
			Help: "Catalog queries by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nextpage_catalog_request_duration_seconds",
			Help:    "Upstream catalog latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	CatalogBreakerOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nextpage_catalog_breaker_open",
			Help: "1 while the catalog circuit breaker is open",
		},
	)

	SuggestSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nextpage_suggest_superseded_total",
			Help: "Typeahead calls dropped because a newer keystroke arrived",
		},
	)

	// Recommendations
	RecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nextpage_recommend_recompute_total",
			Help: "Recommendation recomputations by outcome (ok, failed, stale)",
		},
		[]string{"outcome"},
	)

	RecommendationsSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nextpage_recommendations",
			Help: "Size of the current ranked recommendation list",
		},
	)

	// Library
	LibraryMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nextpage_library_mutations_total",
			Help: "Library mutations by operation",
		},
		[]string{"operation"},
	)

	LibraryLoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nextpage_library_load_failures_total",
			Help: "Collections reset to empty because the stored blob was unreadable",
		},
		[]string{"key"},
	)
)

// RecordHTTPRequest records one finished HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCatalogRequest records one upstream catalog call.
func RecordCatalogRequest(provider, operation, outcome string, duration time.Duration) {
	CatalogRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	CatalogRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

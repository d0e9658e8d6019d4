// Package metrics provides Prometheus metrics for the overlay service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderFetchTotal counts upstream provider fetches by outcome.
	ProviderFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overlay",
			Name:      "provider_fetch_total",
			Help:      "Total number of upstream news provider fetches",
		},
		[]string{"provider", "status"},
	)

	// ProviderFetchDuration measures upstream fetch latency.
	ProviderFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "overlay",
			Name:      "provider_fetch_duration_seconds",
			Help:      "Duration of upstream news provider fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// CacheRequestsTotal counts stream cache lookups by result.
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overlay",
			Name:      "cache_requests_total",
			Help:      "Total number of stream cache lookups",
		},
		[]string{"result"},
	)

	// CacheInvalidationsTotal counts full cache invalidations.
	CacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "overlay",
			Name:      "cache_invalidations_total",
			Help:      "Total number of stream cache invalidations",
		},
	)

	// CompositionsTotal counts composition passes by content mode.
	CompositionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overlay",
			Name:      "compositions_total",
			Help:      "Total number of headline composition passes",
		},
		[]string{"mode", "degraded"},
	)

	// HTTPRequestsTotal counts handled HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "overlay",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// RecordProviderFetch records one upstream fetch.
func RecordProviderFetch(provider, status string, duration float64) {
	ProviderFetchTotal.WithLabelValues(provider, status).Inc()
	ProviderFetchDuration.WithLabelValues(provider).Observe(duration)
}

// RecordCacheHit records a cache hit.
func RecordCacheHit() {
	CacheRequestsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a cache miss.
func RecordCacheMiss() {
	CacheRequestsTotal.WithLabelValues("miss").Inc()
}

// RecordInvalidation records a full cache invalidation.
func RecordInvalidation() {
	CacheInvalidationsTotal.Inc()
}

// RecordComposition records a composition pass; degraded marks a swallowed provider failure.
func RecordComposition(mode string, degraded bool) {
	label := "false"
	if degraded {
		label = "true"
	}
	CompositionsTotal.WithLabelValues(mode, label).Inc()
}

// RecordHTTPRequest records a handled HTTP request.
func RecordHTTPRequest(method, path, status string) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

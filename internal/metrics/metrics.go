// ABOUTME: Prometheus metrics for cache behavior and aggregate fetches.
// ABOUTME: Provides the HTTP handler for the /metrics endpoint.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds all collectors of this service.
	Registry = prometheus.NewRegistry()

	// CacheHits counts reads served from the cache backend, per source.
	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageintel_cache_hits_total",
			Help: "Number of fetches served from the cache backend",
		},
		[]string{"source"},
	)

	// CacheMisses counts reads that had to go to the underlying source.
	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageintel_cache_misses_total",
			Help: "Number of fetches that missed the cache backend",
		},
		[]string{"source"},
	)

	// FetchErrors counts failed orchestrator branches, per branch.
	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageintel_fetch_errors_total",
			Help: "Number of failed fetch branches",
		},
		[]string{"branch"},
	)

	// AggregateDuration observes how long a full image aggregation takes.
	AggregateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imageintel_aggregate_duration_seconds",
			Help:    "Duration of full image information aggregations",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)

func init() {
	Registry.MustRegister(CacheHits, CacheMisses, FetchErrors, AggregateDuration)
}

// Handler serves the metrics registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

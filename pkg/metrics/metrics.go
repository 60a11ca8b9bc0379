// Package metrics defines the Prometheus metric collectors of the post search
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	InterpretMemoTotal   *prometheus.CounterVec
	DirectivesApplied    *prometheus.CounterVec
	HighlightMatches     *prometheus.HistogramVec
	CategoriesLoaded     prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "post_search_queries_total",
				Help: "Post searches by result type (hit, zero_result, filter_only, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "post_search_latency_seconds",
				Help:    "Post search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "post_search_results_count",
				Help:    "Number of posts returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "post_search_cache_hits_total",
				Help: "Total number of result page cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "post_search_cache_misses_total",
				Help: "Total number of result page cache misses.",
			},
		),
		InterpretMemoTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_interpret_total",
				Help: "Search string interpretations by memo outcome (hit, miss).",
			},
			[]string{"memo"},
		),
		DirectivesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_directives_applied_total",
				Help: "Searches carrying each filter kind (author, category, before, after, origin, mine).",
			},
			[]string{"kind"},
		),
		HighlightMatches: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "highlight_matched_segments",
				Help:    "Matched highlight segments per annotated field.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
			},
			[]string{"field"},
		),
		CategoriesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "category_directory_size",
				Help: "Categories in the current lookup snapshot.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.InterpretMemoTotal,
		m.DirectivesApplied,
		m.HighlightMatches,
		m.CategoriesLoaded,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the sync server
type Metrics struct {
	registry *prometheus.Registry

	// Reconciliation metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// Platform action metrics
	ActionsTotal *prometheus.CounterVec

	// Adapter call metrics
	AdapterRetriesTotal *prometheus.CounterVec

	// Catalog cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_runs_total",
				Help: "Total number of reconciliation runs by outcome status",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sync_run_duration_seconds",
				Help:    "End-to-end reconciliation run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_actions_total",
				Help: "Total number of platform actions by platform, action and status",
			},
			[]string{"platform", "action", "status"},
		),

		AdapterRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_adapter_retries_total",
				Help: "Total number of adapter call retries by platform",
			},
			[]string{"platform"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_cache_hits_total",
				Help: "Total number of catalog cache hits",
			},
			[]string{"catalog"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_cache_misses_total",
				Help: "Total number of catalog cache misses",
			},
			[]string{"catalog"},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.ActionsTotal,
		m.AdapterRetriesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

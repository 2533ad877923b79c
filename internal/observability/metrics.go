// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Ingestion metrics
	TicksTotal         prometheus.Counter
	TickDuration       prometheus.Histogram
	PoolsIngested      prometheus.Counter
	PoolFailures       *prometheus.CounterVec
	PricesComputed     prometheus.Counter
	HistoryPruned      *prometheus.CounterVec
	LastSuccessfulTick prometheus.Gauge

	// Query API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
// on the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dex_price_engine"
	}

	return &Metrics{
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_total",
			Help:      "Total number of ingestion ticks started",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a full ingestion tick",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		PoolsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "pools_ingested_total",
			Help:      "Total number of pool snapshots persisted",
		}),
		PoolFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "pool_failures_total",
			Help:      "Total number of per-pool failures, by stage",
		}, []string{"stage"}),
		PricesComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "prices_computed_total",
			Help:      "Total number of token price points appended",
		}),
		HistoryPruned: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "history_rows_pruned_total",
			Help:      "Total number of history rows deleted by retention, by table",
		}, []string{"table"}),
		LastSuccessfulTick: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_successful_tick_timestamp_seconds",
			Help:      "Unix timestamp of the last tick that completed",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests, by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

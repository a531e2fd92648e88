// Package telemetry provides application-level observability.
//
// All metrics are registered against the default Prometheus registry and are
// served on a side-channel HTTP server started by main.go:
//
//	GET http://<host>:<MAI_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not part of the Gin router so it stays
// off the public ingress and outside the rate-limiting middleware.
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/documents/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Document lifecycle metrics — labelled by outcome so dashboards can separate
// success from each failure class without parsing logs.
var (
	DocumentUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_uploads_total",
			Help: "Total document uploads, by outcome (success, denied, error).",
		},
		[]string{"outcome"},
	)

	DocumentDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_downloads_total",
			Help: "Total document downloads, by outcome.",
		},
		[]string{"outcome"},
	)

	DocumentDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_deletes_total",
			Help: "Total document deletions, by outcome.",
		},
		[]string{"outcome"},
	)
)

// Chat and retrieval metrics.
var (
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total chat requests, by outcome (answered, fallback_model, apology, safety_blocked, error).",
		},
		[]string{"outcome"},
	)

	// IsolationViolationsTotal counts detected tenant-boundary crossings at the
	// search or generation layer. Any nonzero value warrants an alert: it means
	// the external search index surfaced another tenant's data.
	IsolationViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isolation_violations_total",
			Help: "Detected tenant isolation violations, by layer (search, generation).",
		},
		[]string{"layer"},
	)
)

// StorageDegradedMode is 1 while the artifact store is running in its
// in-memory fallback mode after a billing/disabled-class storage failure.
// The transition is one-directional for the process lifetime.
var StorageDegradedMode = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "storage_degraded_mode",
		Help: "1 when the artifact store has degraded to its in-memory fallback, 0 otherwise.",
	},
)

// Database connection pool gauges, polled periodically.
var (
	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Current number of open database connections.",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Current number of idle database connections.",
		},
	)
)

// PollDBStats samples connection pool statistics every interval until stop is
// closed. Run it via safego.Go from main.
func PollDBStats(db *sql.DB, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := db.Stats()
			DBConnectionsOpen.Set(float64(stats.OpenConnections))
			DBConnectionsIdle.Set(float64(stats.Idle))
		case <-stop:
			slog.Debug("db stats poller stopped")
			return
		}
	}
}

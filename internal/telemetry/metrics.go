// Package telemetry provides application-level observability for the record store.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<RS_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router, so admin
// tokens and user data never share a listener with the scrape target.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Key issuance and login outcome counters
//   - Persistence latency and failure counters, by backend
//   - Access key gauges (polled by the key stats job)
//   - Database connection pool gauge (postgres backend only)
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// The path label holds the Gin route template (e.g. /raw/*path), NOT the raw
// URL, to prevent unbounded cardinality from the single-page shell routes.
//
// Example PromQL queries:
//   - Error rate (%):         sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:  histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
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

// Key lifecycle metrics.
//
// LoginsTotal outcome values:
//   - claimed:       an unclaimed key was bound to the email
//   - success:       the key was already bound to the same email
//   - foreign_claim: the key is bound to a different email; login still succeeds
//   - invalid_key:   no key matched
//   - expired:       the key is past its expiry
//   - missing_email: the key was valid but no email was sent
//   - error:         persisting the claim failed
//
// Example PromQL queries:
//   - Shared key usage:  increase(recordstore_logins_total{outcome="foreign_claim"}[1d])
var (
	KeysIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recordstore_keys_issued_total",
			Help: "Total number of access keys issued.",
		},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recordstore_logins_total",
			Help: "Total number of key logins, by outcome.",
		},
		[]string{"outcome"},
	)

	UserDataWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recordstore_user_data_writes_total",
			Help: "Total number of successful user data writes.",
		},
	)
)

// Persistence metrics, labelled by backend (blob, postgres, sqlite).
//
// Every mutation writes the whole document, so persist latency is paid on
// every write request.
//
// Example PromQL queries:
//   - p95 save latency:  histogram_quantile(0.95, sum by (le) (rate(recordstore_persist_duration_seconds_bucket[5m])))
var (
	PersistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recordstore_persist_duration_seconds",
			Help:    "Time spent saving the store document, by backend.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend"},
	)

	PersistFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recordstore_persist_failures_total",
			Help: "Total number of failed document saves, by backend. Each failure rolls back one mutation.",
		},
		[]string{"backend"},
	)
)

// AccessKeys is a GaugeVec with a state label: active, expired, unclaimed.
// active and expired partition all keys; unclaimed counts unexpired keys with
// no bound email. Sampled by the key stats job, not per request.
var AccessKeys = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "recordstore_access_keys",
		Help: "Number of access keys, by state.",
	},
	[]string{"state"},
)

// Registrations is the number of distinct emails that have claimed a key.
var Registrations = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "recordstore_registrations",
		Help: "Number of registered emails.",
	},
)

// DBOpenConnections tracks the number of open connections held by the
// postgres backend's pool. Sampled every 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples sql.DB pool statistics every 30 seconds until
// ctx is cancelled or the database becomes unreachable.
func StartDBStatsCollector(ctx context.Context, db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}

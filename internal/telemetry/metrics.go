// Package telemetry provides logging setup and Prometheus metrics for the admin service.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and served by the
// Gin router at GET /metrics when telemetry.metrics_enabled is true.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - API key authentication outcomes
//   - Email log entries recorded, by status
//   - API credit deductions, denials and monthly resets
//   - Rate limiter rejections
//   - Log archive exports
//   - Database connection pool gauges
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/companies/:company_id/templates)
// rather than the raw request URL so tenant ids never become label values. No metric is
// labelled by company.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mailnow"

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Error rate (%):   sum(rate(mailnow_http_requests_total{status=~"5.."}[5m])) / sum(rate(mailnow_http_requests_total[5m])) * 100
//   - p99 per route:    histogram_quantile(0.99, sum by (path, le) (rate(mailnow_http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request latencies, by method and route template.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// API key authentication outcomes. result is one of ok, missing, not_found, inactive,
// expired, error.
//
// A spike in not_found usually means a leaked or mistyped key is being retried.
var APIKeyAuthTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_key_auth_total",
		Help:      "API key authentication attempts, by result.",
	},
	[]string{"result"},
)

// EmailsRecordedTotal counts email log rows written, by delivery status.
var EmailsRecordedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_recorded_total",
		Help:      "Email log entries recorded, by status.",
	},
	[]string{"status"},
)

// Credit metrics.
//
// CreditResetsTotal counts companies whose monthly allowance was restored, by trigger
// ("job" or "lazy"). CreditResetRunDuration times one pass of the reset job.
var (
	CreditDeductionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_deductions_total",
			Help:      "API credit checks on the public send path, by result (deducted, unlimited, insufficient).",
		},
		[]string{"result"},
	)

	CreditResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_resets_total",
			Help:      "Companies whose monthly API credits were reset, by trigger.",
		},
		[]string{"trigger"},
	)

	CreditResetRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "credit_reset_run_duration_seconds",
			Help:      "Duration of one credit reset job pass.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// RateLimitRejectionsTotal counts requests refused by the rate limiter, by backend
// ("memory" or "redis").
var RateLimitRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by the rate limiter, by backend.",
	},
	[]string{"backend"},
)

// LogExportsTotal counts log archive exports, by storage backend and result.
var LogExportsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "log_exports_total",
		Help:      "Email log archive exports, by storage backend and result.",
	},
	[]string{"backend", "result"},
)

// Database pool gauges, sampled by StartDBStatsCollector rather than per request.
//
// Example PromQL queries:
//   - Pool utilisation (%): mailnow_db_in_use_connections / <database.max_connections> * 100
var (
	DBOpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_open_connections",
			Help:      "Current number of open database connections in the pool.",
		},
	)

	DBInUseConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_in_use_connections",
			Help:      "Current number of database connections in use.",
		},
	)
)

// RecordDBStats copies the pool statistics into the DB gauges.
func RecordDBStats(stats sql.DBStats) {
	DBOpenConnections.Set(float64(stats.OpenConnections))
	DBInUseConnections.Set(float64(stats.InUse))
}

// StartDBStatsCollector samples db pool statistics every interval until ctx is done.
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(ctx, database.DB, 30*time.Second)
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Debug("db stats collector stopped")
				return
			case <-ticker.C:
				RecordDBStats(db.Stats())
			}
		}
	}()
}

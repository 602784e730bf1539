// Package metrics exposes the Prometheus collectors shared across the
// ingestion pipeline, the analytics engine and the SSE streamer,
// following the teacher's pkg/metrics package-level-collector idiom:
// one global registry of vars, one Record* helper per measurement.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestionRunsTotal counts completed polling-pipeline runs by outcome.
	IngestionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regtrack_ingestion_runs_total",
		Help: "Total number of ingestion pipeline runs, by outcome.",
	}, []string{"outcome"})

	// IngestionRunDuration observes how long a full ingestion run took.
	IngestionRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "regtrack_ingestion_run_duration_seconds",
		Help:    "Duration of a full ingestion pipeline run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	// ModulesImportedTotal counts modules successfully imported by release.
	ModulesImportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regtrack_modules_imported_total",
		Help: "Total number of module jobs imported, by release.",
	}, []string{"release"})

	// ParseErrorsTotal counts per-file parse failures that were skipped.
	ParseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regtrack_parse_errors_total",
		Help: "Total number of log/JUnit files skipped due to parse errors.",
	}, []string{"kind"})

	// CIRequestDuration observes CI-client call latency by operation and outcome.
	CIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "regtrack_ci_request_duration_seconds",
		Help:    "Duration of CI client HTTP calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	// CIRequestRetriesTotal counts retried CI requests.
	CIRequestRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regtrack_ci_request_retries_total",
		Help: "Total number of CI client request retries.",
	})

	// TestResultsImportedTotal counts individual test results persisted.
	TestResultsImportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regtrack_test_results_imported_total",
		Help: "Total number of test results imported, by status.",
	}, []string{"status"})

	// SSEConnectionsActive tracks the number of currently open SSE streams.
	SSEConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "regtrack_sse_connections_active",
		Help: "Number of currently open SSE job-log streams.",
	})

	// SSEDrainDuration observes how long the post-completion drain phase ran.
	SSEDrainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "regtrack_sse_drain_duration_seconds",
		Help:    "Duration of the SSE drain phase after a job reaches a terminal state.",
		Buckets: prometheus.LinearBuckets(0, 0.5, 10),
	})

	// AnalyticsQueryDuration observes analytics-engine query latency by endpoint.
	AnalyticsQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "regtrack_analytics_query_duration_seconds",
		Help:    "Duration of analytics engine computations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

// RecordIngestionRun records the outcome and duration of a completed run.
func RecordIngestionRun(outcome string, duration time.Duration) {
	IngestionRunsTotal.WithLabelValues(outcome).Inc()
	IngestionRunDuration.Observe(duration.Seconds())
}

// RecordModuleImported increments the per-release imported-module counter.
func RecordModuleImported(release string) {
	ModulesImportedTotal.WithLabelValues(release).Inc()
}

// RecordParseError increments the per-kind parse-error counter.
func RecordParseError(kind string) {
	ParseErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordCIRequest records a CI client call's duration and outcome.
func RecordCIRequest(operation, outcome string, duration time.Duration) {
	CIRequestDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordCIRequestRetry increments the CI retry counter.
func RecordCIRequestRetry() {
	CIRequestRetriesTotal.Inc()
}

// RecordTestResultsImported increments the per-status imported counter by n.
func RecordTestResultsImported(status string, n int) {
	TestResultsImportedTotal.WithLabelValues(status).Add(float64(n))
}

// RecordSSEDrain records the duration of a completed drain phase.
func RecordSSEDrain(duration time.Duration) {
	SSEDrainDuration.Observe(duration.Seconds())
}

// RecordAnalyticsQuery records the duration of an analytics computation.
func RecordAnalyticsQuery(endpoint string, duration time.Duration) {
	AnalyticsQueryDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

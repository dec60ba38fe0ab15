// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Refresh cycle metrics
	CycleRunsTotal *prometheus.CounterVec
	CycleDuration  *prometheus.HistogramVec

	// Upstream metrics
	UpstreamCallLatency *prometheus.HistogramVec
	UpstreamCallErrors  *prometheus.CounterVec

	// Scoring metrics
	EntriesScored   prometheus.Counter
	EntriesFiltered *prometheus.CounterVec

	// Persistence metrics
	EntriesPersisted  prometheus.Counter
	PnlPointsWritten  prometheus.Counter
	DBQueryDuration   *prometheus.HistogramVec
	DBQueryErrors     *prometheus.CounterVec
	ArchiveWriteFails prometheus.Counter

	// Publication metrics
	CandidatesPublished prometheus.Counter
	PublishErrors       prometheus.Counter

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trader_alpha_lab"
	}

	return &Metrics{
		CycleRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "cycle_runs_total",
			Help:      "Total number of refresh cycles by period and status",
		}, []string{"period", "status"}),
		CycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "cycle_duration_seconds",
			Help:      "Refresh cycle duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"period"}),

		UpstreamCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_latency_seconds",
			Help:      "Upstream HTTP call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		UpstreamCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_errors_total",
			Help:      "Total number of upstream call errors by endpoint and kind",
		}, []string{"endpoint", "kind"}),

		EntriesScored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "entries_scored_total",
			Help:      "Total number of leaderboard entries scored",
		}),
		EntriesFiltered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "entries_filtered_total",
			Help:      "Total number of entries rejected by hard filters, by reason",
		}, []string{"reason"}),

		EntriesPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "entries_persisted_total",
			Help:      "Total number of ranked entries written",
		}),
		PnlPointsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "pnl_points_written_total",
			Help:      "Total number of pnl points written",
		}),
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"operation"}),
		ArchiveWriteFails: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "archive_write_failures_total",
			Help:      "Total number of best-effort archive write failures",
		}),

		CandidatesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "candidates_published_total",
			Help:      "Total number of candidate events published",
		}),
		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "errors_total",
			Help:      "Total number of candidate publish failures",
		}),

		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last successfully committed cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycle records one refresh cycle run.
func RecordCycle(period int, status string, durationSeconds float64) {
	p := strconv.Itoa(period)
	DefaultMetrics.CycleRunsTotal.WithLabelValues(p, status).Inc()
	DefaultMetrics.CycleDuration.WithLabelValues(p).Observe(durationSeconds)
}

// RecordUpstreamCall records upstream call latency, plus an error by
// kind when errKind is non-empty.
func RecordUpstreamCall(endpoint string, seconds float64, errKind string) {
	DefaultMetrics.UpstreamCallLatency.WithLabelValues(endpoint).Observe(seconds)
	if errKind != "" {
		DefaultMetrics.UpstreamCallErrors.WithLabelValues(endpoint, errKind).Inc()
	}
}

// RecordUpstreamError increments the upstream error counter.
func RecordUpstreamError(endpoint, kind string) {
	DefaultMetrics.UpstreamCallErrors.WithLabelValues(endpoint, kind).Inc()
}

// RecordScored records scored and filtered entry counts for one cycle.
func RecordScored(scored int, filteredByReason map[string]int) {
	DefaultMetrics.EntriesScored.Add(float64(scored))
	for reason, n := range filteredByReason {
		DefaultMetrics.EntriesFiltered.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordPersisted records a committed replace of one period.
func RecordPersisted(entries, points int) {
	DefaultMetrics.EntriesPersisted.Add(float64(entries))
	DefaultMetrics.PnlPointsWritten.Add(float64(points))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordPublish records one publish attempt.
func RecordPublish(err error) {
	if err != nil {
		DefaultMetrics.PublishErrors.Inc()
		return
	}
	DefaultMetrics.CandidatesPublished.Inc()
}

// RecordArchiveFailure records a best-effort archive write failure.
func RecordArchiveFailure() {
	DefaultMetrics.ArchiveWriteFails.Inc()
}

// MarkCycleSuccess updates the last successful cycle gauge.
func MarkCycleSuccess(unixSeconds float64) {
	DefaultMetrics.LastSuccessfulCycle.Set(unixSeconds)
}

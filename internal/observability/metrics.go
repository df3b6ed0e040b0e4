package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	submissionsGraded     *prometheus.CounterVec
	gradingDuration       prometheus.Histogram
	gradeTotals           prometheus.Histogram
	gradingFailures       prometheus.Counter
	compilerAttempts      *prometheus.CounterVec
	uploadsRejected       *prometheus.CounterVec
	dashboardCacheLookups *prometheus.CounterVec
	eventSubscribers      prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the grader.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grader",
			Name:      "http_requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "grader",
			Name:      "http_latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 30.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grader",
			Name:      "http_errors_total",
			Help:      "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		submissionsGraded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grader",
			Subsystem: "grading",
			Name:      "submissions_total",
			Help:      "Number of graded submissions by the backend that compiled them.",
		}, []string{"backend", "band"})

		gradingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "grader",
			Subsystem: "grading",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a full grading run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		})

		gradeTotals = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "grader",
			Subsystem: "grading",
			Name:      "total_score",
			Help:      "Distribution of total scores.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		})

		gradingFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grader",
			Subsystem: "grading",
			Name:      "internal_failures_total",
			Help:      "Number of grading runs aborted by an internal failure.",
		})

		compilerAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grader",
			Subsystem: "compiler",
			Name:      "attempts_total",
			Help:      "Compile-and-run attempts by backend and outcome.",
		}, []string{"backend", "outcome"})

		uploadsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grader",
			Subsystem: "upload",
			Name:      "rejected_total",
			Help:      "Number of uploads rejected by validation.",
		}, []string{"reason"})

		dashboardCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grader",
			Subsystem: "dashboard",
			Name:      "cache_lookups_total",
			Help:      "Dashboard summary cache lookups by result.",
		}, []string{"result"})

		eventSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "grader",
			Subsystem: "events",
			Name:      "subscribers_active",
			Help:      "Number of connected grading event subscribers.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			submissionsGraded, gradingDuration, gradeTotals, gradingFailures,
			compilerAttempts, uploadsRejected, dashboardCacheLookups, eventSubscribers,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SubmissionsGraded exposes the graded submission counter.
func SubmissionsGraded() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsGraded
}

// GradingDuration exposes the grading duration histogram.
func GradingDuration() prometheus.Histogram {
	RegisterMetrics()
	return gradingDuration
}

// GradeTotals exposes the total score histogram.
func GradeTotals() prometheus.Histogram {
	RegisterMetrics()
	return gradeTotals
}

// GradingFailures exposes the internal failure counter.
func GradingFailures() prometheus.Counter {
	RegisterMetrics()
	return gradingFailures
}

// CompilerAttempts exposes the compile-and-run attempt counter.
func CompilerAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return compilerAttempts
}

// UploadsRejected exposes the rejected upload counter.
func UploadsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsRejected
}

// DashboardCacheLookups exposes the dashboard cache counter.
func DashboardCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return dashboardCacheLookups
}

// EventSubscribers exposes the connected subscriber gauge.
func EventSubscribers() prometheus.Gauge {
	RegisterMetrics()
	return eventSubscribers
}

// Package metrics provides Prometheus metrics for the KPI engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Cycle metrics
	cyclesStarted   prometheus.Counter
	cyclesCommitted prometheus.Counter
	cyclesFailed    *prometheus.CounterVec
	cyclesRejected  prometheus.Counter
	cycleDuration   prometheus.Histogram
	stageDuration   *prometheus.HistogramVec

	// Extraction and scoring metrics
	rowsExtracted      prometheus.Counter
	extractionFailures prometheus.Counter
	subjectsScored     prometheus.Gauge

	// Alert metrics
	alertsRaised       *prometheus.CounterVec
	alertsSuppressed   prometheus.Counter
	alertsAcknowledged prometheus.Counter
	openAlerts         prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByType        *prometheus.CounterVec
	errorLatency        *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with configuration options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "kpiengine",
		subsystem:        "refresh",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.cyclesStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycles_started_total",
		Help:      "Total number of refresh cycles started",
	})
	m.cyclesCommitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycles_committed_total",
		Help:      "Total number of refresh cycles committed",
	})
	m.cyclesFailed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycles_failed_total",
		Help:      "Total number of refresh cycles that failed, by failing stage",
	}, []string{"stage"})
	m.cyclesRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycles_rejected_total",
		Help:      "Total number of cycle triggers rejected because a cycle was already running",
	})
	m.cycleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycle_duration_seconds",
		Help:      "Histogram of full refresh cycle duration in seconds",
		Buckets:   m.histogramBuckets,
	})
	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_duration_seconds",
		Help:      "Histogram of per-stage duration in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})

	m.rowsExtracted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "raw_rows_extracted_total",
		Help:      "Total number of raw metric rows produced by extractors",
	})
	m.extractionFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "extraction_failures_total",
		Help:      "Total number of per-subject extraction failures",
	})
	m.subjectsScored = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "subjects_scored",
		Help:      "Number of subjects scored in the last committed cycle",
	})

	m.alertsRaised = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "alerts_raised_total",
		Help:      "Total number of alerts raised, by type and severity",
	}, []string{"type", "severity"})
	m.alertsSuppressed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "alerts_suppressed_total",
		Help:      "Total number of alert candidates suppressed by open-alert dedup",
	})
	m.alertsAcknowledged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "alerts_acknowledged_total",
		Help:      "Total number of alerts acknowledged",
	})
	m.openAlerts = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "open_alerts",
		Help:      "Current number of unacknowledged alerts",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_endpoint_total",
		Help:      "Total errors by endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})
	m.errorsByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_type_total",
		Help:      "Total errors by error type and severity",
	}, []string{"error_type", "severity"})
	m.errorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "error_latency_milliseconds",
		Help:      "Latency of failed operations in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Current allocated heap memory in bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutine_count",
		Help:      "Current number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "gc_pause_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// Package-level helpers operating on the global manager.

// RecordCycleStarted increments the started-cycle counter.
func RecordCycleStarted() { globalManager.cyclesStarted.Inc() }

// RecordCycleCommitted increments the committed-cycle counter.
func RecordCycleCommitted() { globalManager.cyclesCommitted.Inc() }

// RecordCycleFailed increments the failed-cycle counter for a stage.
func RecordCycleFailed(stage string) { globalManager.cyclesFailed.WithLabelValues(stage).Inc() }

// RecordCycleRejected increments the rejected-trigger counter.
func RecordCycleRejected() { globalManager.cyclesRejected.Inc() }

// RecordCycleDuration observes a full cycle duration.
func RecordCycleDuration(seconds float64) { globalManager.cycleDuration.Observe(seconds) }

// RecordStageDuration observes one stage's duration.
func RecordStageDuration(stage string, seconds float64) {
	globalManager.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordRowsExtracted adds to the extracted-row counter.
func RecordRowsExtracted(n int) { globalManager.rowsExtracted.Add(float64(n)) }

// RecordExtractionFailures adds to the per-subject failure counter.
func RecordExtractionFailures(n int) { globalManager.extractionFailures.Add(float64(n)) }

// UpdateSubjectsScored sets the subjects-scored gauge.
func UpdateSubjectsScored(n int) { globalManager.subjectsScored.Set(float64(n)) }

// RecordAlertRaised increments the raised-alert counter.
func RecordAlertRaised(alertType, severity string) {
	globalManager.alertsRaised.WithLabelValues(alertType, severity).Inc()
}

// RecordAlertsSuppressed adds to the suppressed-candidate counter.
func RecordAlertsSuppressed(n int) { globalManager.alertsSuppressed.Add(float64(n)) }

// RecordAlertAcknowledged increments the acknowledged-alert counter.
func RecordAlertAcknowledged() { globalManager.alertsAcknowledged.Inc() }

// UpdateOpenAlerts sets the open-alert gauge.
func UpdateOpenAlerts(n int) { globalManager.openAlerts.Set(float64(n)) }

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint increments the per-endpoint error counter.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType increments the per-type error counter.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorLatency observes the latency of a failed operation.
func RecordErrorLatency(component, errorType string, durationMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets the heap-allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine-count gauge.
func UpdateSystemGoroutineCount(n int) { globalManager.systemGoroutineCount.Set(float64(n)) }

// RecordSystemGCPauseTime observes an average GC pause time.
func RecordSystemGCPauseTime(ms float64) { globalManager.systemGCPauseTime.Observe(ms) }

// GetRegistry returns the custom registry for metrics exposition.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

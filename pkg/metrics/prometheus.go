// Package metrics provides Prometheus metrics for the scorebridge service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by scorebridge.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Seed metrics
	seedsGenerated prometheus.Counter
	seedErrors     prometheus.Counter

	// Bridge metrics - read protocol
	snapshotsForwarded *prometheus.CounterVec
	snapshotEntries    prometheus.Gauge
	readErrors         *prometheus.CounterVec

	// Bridge metrics - write protocol
	submissions   *prometheus.CounterVec
	keysGenerated prometheus.Counter
	writes        *prometheus.CounterVec
	writeLatency  *prometheus.HistogramVec

	// Session metrics
	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker metrics
	workerActiveCount       prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scorebridge",
		subsystem:        "bridge",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.seedsGenerated = m.counter("seeds_generated_total", "Total number of session seeds generated")
	m.seedErrors = m.counter("seed_errors_total", "Total number of seed generations that failed for lack of entropy")

	m.snapshotsForwarded = m.counterVec("snapshots_forwarded_total",
		"Total number of leaderboard snapshots forwarded to applications", "policy")
	m.snapshotEntries = m.gauge("snapshot_entries", "Number of entries in the most recently forwarded snapshot")
	m.readErrors = m.counterVec("read_errors_total", "Total number of failed leaderboard reads", "policy")

	m.submissions = m.counterVec("submissions_total", "Total number of score submissions received", "kind")
	m.keysGenerated = m.counter("keys_generated_total", "Total number of leaderboard keys generated")
	m.writes = m.counterVec("writes_total", "Total number of backend writes by operation and result", "op", "result")
	m.writeLatency = m.histogramVec("write_latency_milliseconds", "Backend write latency in milliseconds", "op")

	m.sessionsActive = m.gauge("sessions_active", "Number of application sessions currently attached")
	m.sessionsTotal = m.counter("sessions_total", "Total number of application sessions opened")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.queueSize = m.gauge("write_queue_size", "Current number of pending backend writes")
	m.queueCapacity = m.gauge("write_queue_capacity", "Maximum number of pending backend writes")
	m.queueUtilization = m.gauge("write_queue_utilization", "Pending writes divided by capacity")
	m.queueEnqueueRate = m.counter("write_queue_enqueued_total", "Total number of writes enqueued")
	m.queueDequeueRate = m.counter("write_queue_dequeued_total", "Total number of writes dequeued")
	m.queueEnqueueErrors = m.counter("write_queue_enqueue_errors_total", "Total number of writes rejected by the queue")
	m.queueProcessingLatency = m.histogram("write_queue_enqueue_latency_milliseconds", "Enqueue latency in milliseconds")

	m.workerActiveCount = m.gauge("write_workers_active", "Number of write workers running")
	m.workerMessagesPerSecond = m.gauge("write_workers_jobs_per_second", "Writes completed per second")
	m.workerProcessingLatency = m.histogram("write_worker_latency_milliseconds", "Per-job worker latency in milliseconds")
	m.workerErrorRate = m.counter("write_worker_errors_total", "Total number of failed worker jobs")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap memory in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// Seed Metrics Functions.

// RecordSeedGenerated increments the generated seeds counter.
func RecordSeedGenerated() { globalManager.seedsGenerated.Inc() }

// RecordSeedError increments the seed failure counter.
func RecordSeedError() { globalManager.seedErrors.Inc() }

// Bridge Metrics Functions.

// RecordSnapshotForwarded records a forwarded snapshot and its size.
func RecordSnapshotForwarded(policy string, entries int) {
	globalManager.snapshotsForwarded.WithLabelValues(policy).Inc()
	globalManager.snapshotEntries.Set(float64(entries))
}

// RecordReadError records a failed one-shot read.
func RecordReadError(policy string) { globalManager.readErrors.WithLabelValues(policy).Inc() }

// RecordSubmission records a submission by kind ("create" or "update").
func RecordSubmission(kind string) { globalManager.submissions.WithLabelValues(kind).Inc() }

// RecordKeyGenerated increments the generated keys counter.
func RecordKeyGenerated() { globalManager.keysGenerated.Inc() }

// RecordWrite records a backend write result ("ok" or "error") and its latency.
func RecordWrite(op, result string, latencyMs float64) {
	globalManager.writes.WithLabelValues(op, result).Inc()
	globalManager.writeLatency.WithLabelValues(op).Observe(latencyMs)
}

// Session Metrics Functions.

// SessionOpened records a newly attached session.
func SessionOpened() {
	globalManager.sessionsTotal.Inc()
	globalManager.sessionsActive.Inc()
}

// SessionClosed records a detached session.
func SessionClosed() { globalManager.sessionsActive.Dec() }

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// UpdateWorkerMessagesPerSecond sets the average jobs processed per second.
func UpdateWorkerMessagesPerSecond(rate float64) { globalManager.workerMessagesPerSecond.Set(rate) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrorRate.Inc() }

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package metrics provides Prometheus metrics for the wallsync batch tool.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics of the tool.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Pipeline metrics
	sessionsProcessed  *prometheus.CounterVec
	sessionDuration    prometheus.Histogram
	sessionProcessing  prometheus.Histogram
	stageLatency       *prometheus.HistogramVec
	samplesParsed      *prometheus.CounterVec
	touchesResolved    *prometheus.CounterVec
	fallbackUsers      prometheus.Counter
	matcherRegressions prometheus.Counter
	trajectoryPoints   *prometheus.CounterVec

	// Output metrics
	outputErrors      *prometheus.CounterVec
	repositoryRows    *prometheus.CounterVec
	repositoryLatency prometheus.Histogram

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "wallsync",
		subsystem:        "fusion",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.sessionsProcessed = auto.NewCounterVec(
		m.counterOpts("sessions_processed_total", "Sessions processed, by outcome"),
		[]string{"status"})
	m.sessionDuration = auto.NewHistogram(
		m.histogramOpts("session_duration_seconds", "Recorded length of processed sessions in seconds",
			[]float64{60, 300, 600, 1200, 1800, 3600, 7200}))
	m.sessionProcessing = auto.NewHistogram(
		m.histogramOpts("session_processing_seconds", "Wall time spent fusing a session and writing its outputs",
			[]float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}))
	m.stageLatency = auto.NewHistogramVec(
		m.histogramOpts("stage_latency_milliseconds", "Wall time of each pipeline stage", m.histogramBuckets),
		[]string{"stage"})
	m.samplesParsed = auto.NewCounterVec(
		m.counterOpts("samples_parsed_total", "Samples decoded from the session logs, by source"),
		[]string{"source"})
	m.touchesResolved = auto.NewCounterVec(
		m.counterOpts("touches_resolved_total", "Touches labelled by each resolution stage"),
		[]string{"stage"})
	m.fallbackUsers = auto.NewCounter(
		m.counterOpts("fallback_users_total", "Tracking ids that got a fallback user id"))
	m.matcherRegressions = auto.NewCounter(
		m.counterOpts("matcher_regressions_total", "Windowed join queries that arrived out of time order"))
	m.trajectoryPoints = auto.NewCounterVec(
		m.counterOpts("trajectory_points_total", "Resampled trajectory points, by modality and origin"),
		[]string{"modality", "origin"})

	m.outputErrors = auto.NewCounterVec(
		m.counterOpts("output_errors_total", "Output artifacts that could not be written"),
		[]string{"artifact"})
	m.repositoryRows = auto.NewCounterVec(
		m.counterOpts("repository_rows_total", "Rows written to the repository, by table"),
		[]string{"table"})
	m.repositoryLatency = auto.NewHistogram(
		m.histogramOpts("repository_write_latency_milliseconds", "Latency of one session write", m.histogramBuckets))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current number of queued sessions"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue utilization ratio (0-1)"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total sessions enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total sessions dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Sessions rejected by a full queue"))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Number of workers busy with a session"))
	m.workerIdleCount = auto.NewGauge(m.gaugeOpts("worker_idle_count", "Number of idle workers"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Time a worker spent on one session", m.histogramBuckets))
	m.workerErrorRate = auto.NewCounter(m.counterOpts("worker_errors_total", "Sessions that failed in a worker"))

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"})
}

// RecordSessionProcessed counts a finished session with its outcome.
func RecordSessionProcessed(status string) {
	globalManager.sessionsProcessed.WithLabelValues(status).Inc()
}

// RecordSessionDuration records the recorded length of a session.
func RecordSessionDuration(seconds float64) {
	globalManager.sessionDuration.Observe(seconds)
}

// RecordSessionProcessing records how long fusing a session and writing its
// outputs took.
func RecordSessionProcessing(seconds float64) {
	globalManager.sessionProcessing.Observe(seconds)
}

// RecordStageLatency records how long a pipeline stage took.
func RecordStageLatency(stage string, latencyMs float64) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(latencyMs)
}

// RecordSamplesParsed adds decoded samples of one source.
func RecordSamplesParsed(source string, n int) {
	globalManager.samplesParsed.WithLabelValues(source).Add(float64(n))
}

// RecordTouchesResolved adds touches labelled by a resolution stage.
func RecordTouchesResolved(stage string, n int) {
	globalManager.touchesResolved.WithLabelValues(stage).Add(float64(n))
}

// RecordFallbackUsers adds fallback user ids handed out.
func RecordFallbackUsers(n int) {
	globalManager.fallbackUsers.Add(float64(n))
}

// RecordMatcherRegressions adds out-of-order matcher queries.
func RecordMatcherRegressions(n int) {
	globalManager.matcherRegressions.Add(float64(n))
}

// RecordTrajectoryPoints adds resampled points of one modality.
func RecordTrajectoryPoints(modality string, tracked, synthetic int) {
	globalManager.trajectoryPoints.WithLabelValues(modality, "tracked").Add(float64(tracked))
	globalManager.trajectoryPoints.WithLabelValues(modality, "synthetic").Add(float64(synthetic))
}

// RecordOutputError counts an artifact that failed to write.
func RecordOutputError(artifact string) {
	globalManager.outputErrors.WithLabelValues(artifact).Inc()
}

// RecordRepositoryRows adds rows written to a repository table.
func RecordRepositoryRows(table string, n int) {
	globalManager.repositoryRows.WithLabelValues(table).Add(float64(n))
}

// RecordRepositoryLatency records the latency of one session write.
func RecordRepositoryLatency(latencyMs float64) {
	globalManager.repositoryLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node exporter's textfile collector. A batch run has no scrape endpoint.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

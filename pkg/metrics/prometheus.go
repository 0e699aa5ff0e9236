// Package metrics provides Prometheus metrics for the maison service.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Score buckets cover the 0..100 match score range.
var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 75, 80, 90, 100} //nolint:gochecknoglobals // constant bucket layout

// Manager manages all Prometheus metrics for the maison service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Matching
	matchesComputed  prometheus.Counter
	matchScore       prometheus.Histogram
	dreamBrandBoosts *prometheus.CounterVec
	rankingBatchSize prometheus.Histogram

	// Access control
	permissionChecks *prometheus.CounterVec

	// Team request workflow
	teamRequestTransitions *prometheus.CounterVec
	teamRequestConflicts   *prometheus.CounterVec
	expirySweeps           prometheus.Counter
	expiredBySweep         prometheus.Counter

	// Notifications
	notificationsPublished  *prometheus.CounterVec
	notificationsFailed     *prometheus.CounterVec
	notificationsDuplicate  prometheus.Counter
	notificationsDropped    prometheus.Counter
	notificationPublishTime prometheus.Histogram

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueEnqueueErrs prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// Store
	storeQueryLatency *prometheus.HistogramVec
	teamRequests      *prometheus.GaugeVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var (
	globalManager  atomic.Pointer[Manager]             //nolint:gochecknoglobals // singleton metrics manager
	customRegistry atomic.Pointer[prometheus.Registry] //nolint:gochecknoglobals // metrics registry without default Go collectors
)

func init() { //nolint:gochecknoinits // global metrics setup
	Configure()
}

// Configure rebuilds the global metrics on a fresh registry. Call it at
// startup, before anything is served from GetRegistry.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	opts = append(opts, WithPrometheusRegistry(registry))
	globalManager.Store(NewManager(opts...))
	customRegistry.Store(registry)
}

func current() *Manager { return globalManager.Load() }

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "maison",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
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
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.matchesComputed = auto.NewCounter(m.counterOpts("matches_computed_total", "Total number of talent/opportunity matches scored"))
	m.matchScore = auto.NewHistogram(m.histogramOpts("match_score", "Distribution of overall match scores", scoreBuckets))
	m.dreamBrandBoosts = auto.NewCounterVec(m.counterOpts("dream_brand_boosts_total", "Dream brand bonuses applied by target list rank"), []string{"rank", "capped"})
	m.rankingBatchSize = auto.NewHistogram(m.histogramOpts("ranking_batch_size", "Number of candidates ranked per batch", prometheus.ExponentialBuckets(1, 2, 10)))

	m.permissionChecks = auto.NewCounterVec(m.counterOpts("permission_checks_total", "Permission checks by tier, action and outcome"), []string{"tier", "action", "allowed"})

	m.teamRequestTransitions = auto.NewCounterVec(m.counterOpts("team_request_transitions_total", "Team request transitions by resulting status and reviewer tier"), []string{"status", "tier"})
	m.teamRequestConflicts = auto.NewCounterVec(m.counterOpts("team_request_conflicts_total", "Team request operations rejected with a conflict"), []string{"operation"})
	m.expirySweeps = auto.NewCounter(m.counterOpts("expiry_sweeps_total", "Number of expiry sweeps executed"))
	m.expiredBySweep = auto.NewCounter(m.counterOpts("expired_by_sweep_total", "Number of team requests expired by the sweep"))

	m.notificationsPublished = auto.NewCounterVec(m.counterOpts("notifications_published_total", "Notifications delivered to the transport"), []string{"type", "audience"})
	m.notificationsFailed = auto.NewCounterVec(m.counterOpts("notifications_failed_total", "Notifications that failed to publish"), []string{"type"})
	m.notificationsDuplicate = auto.NewCounter(m.counterOpts("notifications_duplicate_total", "Notifications skipped because their id was already delivered"))
	m.notificationsDropped = auto.NewCounter(m.counterOpts("notifications_dropped_total", "Notifications dropped on queue backpressure"))
	m.notificationPublishTime = auto.NewHistogram(m.histogramOpts("notification_publish_latency_milliseconds", "Latency of notification publishing in milliseconds", m.histogramBuckets))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the notification queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Capacity of the notification queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Notification queue size divided by capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Notifications enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Notifications dequeued"))
	m.queueEnqueueErrs = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Failed enqueue attempts"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Number of notification delivery workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Worker delivery errors"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component"), []string{"component", "error_type"})
	m.errorsByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total", "Errors by type and severity"), []string{"error_type", "severity"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.storeQueryLatency = auto.NewHistogramVec(m.histogramOpts("store_query_latency_milliseconds", "Store operation latency in milliseconds", m.histogramBuckets), []string{"driver", "operation"})
	m.teamRequests = auto.NewGaugeVec(m.gaugeOpts("team_requests", "Stored team requests by status"), []string{"status"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of running goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause in milliseconds", m.histogramBuckets))
}

// Matching.

// RecordMatch records one computed match and its final score.
func RecordMatch(score int) {
	current().matchesComputed.Inc()
	current().matchScore.Observe(float64(score))
}

// RecordDreamBrandBoost records a dream brand bonus, noting whether the
// strong-match cap limited it.
func RecordDreamBrandBoost(rank string, capped bool) {
	c := "false"
	if capped {
		c = "true"
	}
	current().dreamBrandBoosts.WithLabelValues(rank, c).Inc()
}

// RecordRankingBatch records the size of a ranked candidate batch.
func RecordRankingBatch(size int) {
	current().rankingBatchSize.Observe(float64(size))
}

// Access control.

// RecordPermissionCheck records the outcome of a permission check.
func RecordPermissionCheck(tier, action string, allowed bool) {
	a := "false"
	if allowed {
		a = "true"
	}
	current().permissionChecks.WithLabelValues(tier, action, a).Inc()
}

// Team request workflow.

// RecordTeamRequestTransition records a request entering status at tier.
func RecordTeamRequestTransition(status, tier string) {
	current().teamRequestTransitions.WithLabelValues(status, tier).Inc()
}

// RecordTeamRequestConflict records an operation refused with a conflict.
func RecordTeamRequestConflict(operation string) {
	current().teamRequestConflicts.WithLabelValues(operation).Inc()
}

// RecordExpirySweep records one sweep and how many requests it expired.
func RecordExpirySweep(expired int) {
	current().expirySweeps.Inc()
	current().expiredBySweep.Add(float64(expired))
}

// Notifications.

// RecordNotificationPublished records a delivered notification.
func RecordNotificationPublished(kind, audience string, latencyMs float64) {
	current().notificationsPublished.WithLabelValues(kind, audience).Inc()
	current().notificationPublishTime.Observe(latencyMs)
}

// RecordNotificationFailed records a notification that could not be published.
func RecordNotificationFailed(kind string) {
	current().notificationsFailed.WithLabelValues(kind).Inc()
}

// RecordNotificationDuplicate records a notification skipped as already delivered.
func RecordNotificationDuplicate() {
	current().notificationsDuplicate.Inc()
}

// RecordNotificationDropped records a notification dropped on backpressure.
func RecordNotificationDropped() {
	current().notificationsDropped.Inc()
}

// Queue.

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	current().queueSize.Set(float64(size))
	if capacity > 0 {
		current().queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	current().queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	current().queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	current().queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	current().queueEnqueueErrs.Inc()
}

// Workers.

// UpdateWorkerCount sets the number of delivery workers.
func UpdateWorkerCount(count int) {
	current().workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	current().workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	current().workerErrors.Inc()
}

// HTTP.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	current().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	current().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Errors.

// RecordErrorByComponent increments the error counter for a component.
func RecordErrorByComponent(component, errorType string) {
	current().errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType increments the error counter by type and severity.
func RecordErrorByType(errorType, severity string) {
	current().errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint increments the error counter for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	current().errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// Store.

// RecordStoreLatency observes the latency of a store operation.
func RecordStoreLatency(driver, operation string, latencyMs float64) {
	current().storeQueryLatency.WithLabelValues(driver, operation).Observe(latencyMs)
}

// UpdateTeamRequestCount sets the number of stored requests in status.
func UpdateTeamRequestCount(status string, count int) {
	current().teamRequests.WithLabelValues(status).Set(float64(count))
}

// System.

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	current().systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	current().systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes an average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	current().systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry.Load()
}

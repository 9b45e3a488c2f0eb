// Package metrics provides Prometheus metrics for groupwatch runs.
package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Manager owns every collector exported by a run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Run outcomes
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	lastSuccessRun *prometheus.GaugeVec

	// Upstream traffic
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	entitiesSkipped  *prometheus.CounterVec

	// Change detection and delivery
	changesDetected       *prometheus.CounterVec
	notificationsSent     *prometheus.CounterVec
	notificationsFailures *prometheus.CounterVec

	// Snapshot storage
	snapshotKeys  *prometheus.GaugeVec
	storageErrors *prometheus.CounterVec
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
		namespace:        "groupwatch",
		subsystem:        "",
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

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Completed runs by task and final state",
		ConstLabels: m.constLabels,
	}, []string{"task", "state"})

	m.runDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "run_duration_seconds",
		Help:        "Wall time of a run",
		Buckets:     []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: m.constLabels,
	}, []string{"task"})

	m.lastSuccessRun = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "last_success_unixtime",
		Help:        "Unix time of the last run that reached Done",
		ConstLabels: m.constLabels,
	}, []string{"task"})

	m.upstreamRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "upstream_requests_total",
		Help:        "Requests to the upstream API by endpoint and outcome",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "outcome"})

	m.upstreamLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "upstream_request_duration_seconds",
		Help:        "Latency of upstream API requests",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint"})

	m.entitiesSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "entities_skipped_total",
		Help:        "Per-entity fetches skipped after a transient failure",
		ConstLabels: m.constLabels,
	}, []string{"task"})

	m.changesDetected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "changes_detected_total",
		Help:        "Change records produced by diffing, by kind",
		ConstLabels: m.constLabels,
	}, []string{"task", "kind"})

	m.notificationsSent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "notifications_sent_total",
		Help:        "Messages accepted by the webhook",
		ConstLabels: m.constLabels,
	}, []string{"task"})

	m.notificationsFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "notification_failures_total",
		Help:        "Messages the webhook did not accept",
		ConstLabels: m.constLabels,
	}, []string{"task"})

	m.snapshotKeys = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "snapshot_keys",
		Help:        "Entity keys held by a snapshot after the last load or save",
		ConstLabels: m.constLabels,
	}, []string{"snapshot"})

	m.storageErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "storage_errors_total",
		Help:        "Snapshot load/save failures other than absence",
		ConstLabels: m.constLabels,
	}, []string{"op"})
}

// RecordRun records the final state and duration of a run.
func RecordRun(job, state string, d time.Duration) {
	globalManager.runsTotal.WithLabelValues(job, state).Inc()
	globalManager.runDuration.WithLabelValues(job).Observe(d.Seconds())
}

// RecordRunSuccess stamps the time of a successful run.
func RecordRunSuccess(job string, at time.Time) {
	globalManager.lastSuccessRun.WithLabelValues(job).Set(float64(at.Unix()))
}

// RecordUpstreamRequest counts one upstream request and its latency.
func RecordUpstreamRequest(endpoint, outcome string, d time.Duration) {
	globalManager.upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	globalManager.upstreamLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordEntitySkipped counts an entity dropped from a batch.
func RecordEntitySkipped(job string) {
	globalManager.entitiesSkipped.WithLabelValues(job).Inc()
}

// RecordChanges adds n change records of kind.
func RecordChanges(job, kind string, n int) {
	if n <= 0 {
		return
	}
	globalManager.changesDetected.WithLabelValues(job, kind).Add(float64(n))
}

// RecordNotificationSent counts a delivered message.
func RecordNotificationSent(job string) {
	globalManager.notificationsSent.WithLabelValues(job).Inc()
}

// RecordNotificationFailure counts a message the sink rejected.
func RecordNotificationFailure(job string) {
	globalManager.notificationsFailures.WithLabelValues(job).Inc()
}

// UpdateSnapshotKeys sets the number of keys held by a snapshot.
func UpdateSnapshotKeys(snapshot string, n int) {
	globalManager.snapshotKeys.WithLabelValues(snapshot).Set(float64(n))
}

// RecordStorageError counts a failed snapshot operation ("load" or "save").
func RecordStorageError(op string) {
	globalManager.storageErrors.WithLabelValues(op).Inc()
}

// Push sends the current registry contents to a Prometheus Pushgateway,
// grouped under job. An empty url is a no-op.
func Push(ctx context.Context, url, job string) error {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(customRegistry).PushContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrPushFailed, err)
	}
	return nil
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package metrics provides Prometheus metrics for the completion tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Business metrics
	completionsTotal  prometheus.Counter
	completionsRepeat prometheus.Counter
	unknownSlots      prometheus.Counter
	totalPlayers      prometheus.Gauge

	// Store metrics
	storeUpdateLatency prometheus.Histogram
	storeQueryLatency  prometheus.Histogram
	storeBusyRetries   prometheus.Counter

	// Leaderboard cache metrics
	rebuilds            prometheus.Counter
	rebuildDuration     prometheus.Histogram
	cacheInconsistency  prometheus.Counter
	degradedReadsServed prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
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
		namespace:        "dobro",
		subsystem:        "school",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.completionsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "completions_total",
		Help:      "Total number of task completions that flipped a flag",
	})

	m.completionsRepeat = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "completions_repeat_total",
		Help:      "Total number of completion calls for already-completed slots",
	})

	m.unknownSlots = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "unknown_slot_rejections_total",
		Help:      "Total number of completion calls rejected for an unknown task slot",
	})

	m.totalPlayers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "total_players",
		Help:      "Total number of players known to the store",
	})

	m.storeUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_update_latency_milliseconds",
		Help:      "Histogram of mutation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_milliseconds",
		Help:      "Histogram of read latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeBusyRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_busy_retries_total",
		Help:      "Total number of retries after a busy store",
	})

	m.rebuilds = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_rebuilds_total",
		Help:      "Total number of full leaderboard cache rebuilds",
	})

	m.rebuildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_rebuild_duration_milliseconds",
		Help:      "Histogram of full rebuild duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.cacheInconsistency = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_inconsistencies_total",
		Help:      "Total number of detected leaderboard cache invariant violations",
	})

	m.degradedReadsServed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "degraded_reads_total",
		Help:      "Total number of degraded (store-unreachable) state reads served",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// Business metrics helpers.

func RecordCompletion() {
	globalManager.completionsTotal.Inc()
}

func RecordRepeatCompletion() {
	globalManager.completionsRepeat.Inc()
}

func RecordUnknownSlot() {
	globalManager.unknownSlots.Inc()
}

func UpdateTotalPlayers(count int) {
	globalManager.totalPlayers.Set(float64(count))
}

// Store metrics helpers.

func RecordStoreUpdateLatency(latencyMs float64) {
	globalManager.storeUpdateLatency.Observe(latencyMs)
}

func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

func RecordStoreBusyRetry() {
	globalManager.storeBusyRetries.Inc()
}

// Leaderboard cache metrics helpers.

func RecordLeaderboardRebuild(durationMs float64) {
	globalManager.rebuilds.Inc()
	globalManager.rebuildDuration.Observe(durationMs)
}

func RecordCacheInconsistency() {
	globalManager.cacheInconsistency.Inc()
}

func RecordDegradedRead() {
	globalManager.degradedReadsServed.Inc()
}

// HTTP metrics helpers.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-go/vstore/pkg/store"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vstore").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for notification duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "vstore",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a store.Observer that records Prometheus metrics. It also
// carries the hub's connection metrics so a server can share one registry.
type Metrics struct {
	subscribers     *prometheus.GaugeVec
	active          *prometheus.GaugeVec
	activations     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	notifyDuration  *prometheus.HistogramVec
	listenerPanics  *prometheus.CounterVec
	connections     prometheus.Gauge
	messagesSent    prometheus.Counter
	slowConsumers   prometheus.Counter
	websocketErrors *prometheus.CounterVec
}

var _ store.Observer = (*Metrics)(nil)

// Prometheus creates an observer that registers its metrics with the
// configured registry.
//
// Metrics collected:
//   - vstore_subscribers: Gauge of current subscribers by store
//   - vstore_active: 1 while a store has subscribers, by store
//   - vstore_activations_total: Counter of idle to active transitions
//   - vstore_notifications_total: Counter of notification passes
//   - vstore_notify_duration_seconds: Histogram of notification pass duration
//   - vstore_listener_panics_total: Counter of subscriber panics
//   - vstore_connections: Gauge of open websocket connections
//   - vstore_messages_sent_total: Counter of values pushed to connections
//   - vstore_slow_consumers_total: Counter of connections dropped for lagging
//   - vstore_websocket_errors_total: Counter of websocket errors by type
//
// Example:
//
//	m := middleware.Prometheus(middleware.WithNamespace("myapp"))
//	counter := store.New(0, store.WithName("counter"), store.WithObserver(m))
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
//
// Registering twice against the same registry panics, as with any
// promauto collector.
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	labels := []string{"store"}

	return &Metrics{
		subscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscribers",
			Help:        "Number of subscribers currently registered",
			ConstLabels: config.ConstLabels,
		}, labels),

		active: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active",
			Help:        "1 while the store has at least one subscriber",
			ConstLabels: config.ConstLabels,
		}, labels),

		activations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "activations_total",
			Help:        "Total number of idle to active transitions",
			ConstLabels: config.ConstLabels,
		}, labels),

		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of notification passes",
			ConstLabels: config.ConstLabels,
		}, labels),

		notifyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notify_duration_seconds",
			Help:        "Notification pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, labels),

		listenerPanics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "listener_panics_total",
			Help:        "Total number of subscriber panics",
			ConstLabels: config.ConstLabels,
		}, labels),

		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections",
			Help:        "Number of open WebSocket connections",
			ConstLabels: config.ConstLabels,
		}),

		messagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_sent_total",
			Help:        "Total number of values pushed to connections",
			ConstLabels: config.ConstLabels,
		}),

		slowConsumers: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "slow_consumers_total",
			Help:        "Total number of connections dropped because their send buffer was full",
			ConstLabels: config.ConstLabels,
		}),

		websocketErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_errors_total",
			Help:        "Total WebSocket errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

// =============================================================================
// store.Observer
// =============================================================================

func (m *Metrics) Subscribed(name string, listeners int) {
	m.subscribers.WithLabelValues(name).Set(float64(listeners))
}

func (m *Metrics) Unsubscribed(name string, listeners int) {
	m.subscribers.WithLabelValues(name).Set(float64(listeners))
}

func (m *Metrics) Activated(name string) {
	m.activations.WithLabelValues(name).Inc()
	m.active.WithLabelValues(name).Set(1)
}

func (m *Metrics) Deactivated(name string) {
	m.active.WithLabelValues(name).Set(0)
}

func (m *Metrics) Notified(name string, listeners int, elapsed time.Duration) {
	m.notifications.WithLabelValues(name).Inc()
	m.notifyDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (m *Metrics) ListenerPanicked(name string, recovered any) {
	m.listenerPanics.WithLabelValues(name).Inc()
}

// =============================================================================
// Connection Recording Functions
// =============================================================================

// The Record methods are safe to call on a nil *Metrics.

// RecordConnectionOpen records a new websocket connection.
func (m *Metrics) RecordConnectionOpen() {
	if m != nil {
		m.connections.Inc()
	}
}

// RecordConnectionClose records a closed websocket connection.
func (m *Metrics) RecordConnectionClose() {
	if m != nil {
		m.connections.Dec()
	}
}

// RecordMessageSent records one value written to a connection.
func (m *Metrics) RecordMessageSent() {
	if m != nil {
		m.messagesSent.Inc()
	}
}

// RecordSlowConsumer records a connection dropped for lagging.
func (m *Metrics) RecordSlowConsumer() {
	if m != nil {
		m.slowConsumers.Inc()
	}
}

// RecordWebSocketError records a WebSocket error.
func (m *Metrics) RecordWebSocketError(errorType string) {
	if m != nil {
		m.websocketErrors.WithLabelValues(errorType).Inc()
	}
}

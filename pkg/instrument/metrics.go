// Package instrument provides ready-made engine observers: Prometheus
// metrics and OpenTelemetry traces.
package instrument

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/urlq-dev/urlq/pkg/adapter"
	"github.com/urlq-dev/urlq/pkg/urlq"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "urlq").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for flush duration.
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

// WithBuckets sets the flush-duration histogram buckets.
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
		Namespace: "urlq",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a urlq.Observer backed by Prometheus collectors.
//
// Metrics collected:
//   - urlq_flushes_total: Counter of committed flushes by history mode
//   - urlq_flush_duration_seconds: Histogram of commit duration
//   - urlq_flush_keys: Histogram of changed keys per flush
//   - urlq_parse_failures_total: Counter of rejected raw values by key
//   - urlq_external_navigations_total: Counter of reconciled external navigations
type Metrics struct {
	flushesTotal        *prometheus.CounterVec
	flushDuration       prometheus.Histogram
	flushKeys           prometheus.Histogram
	parseFailuresTotal  *prometheus.CounterVec
	externalNavigations prometheus.Counter
}

var _ urlq.Observer = (*Metrics)(nil)

// NewMetrics creates the Prometheus observer, registering its collectors
// with the configured registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		flushesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of committed flushes by history mode",
			ConstLabels: config.ConstLabels,
		}, []string{"mode"}),

		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_duration_seconds",
			Help:        "Time spent committing a flush, navigation included",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		flushKeys: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_keys",
			Help:        "Number of changed keys per committed flush",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 3, 5, 8, 13, 21},
		}),

		parseFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "parse_failures_total",
			Help:        "Total number of raw values rejected by their parser",
			ConstLabels: config.ConstLabels,
		}, []string{"key"}),

		externalNavigations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "external_navigations_total",
			Help:        "Total number of reconciled external navigations",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) FlushCommitted(mode adapter.HistoryMode, keys []string, elapsed time.Duration) {
	m.flushesTotal.WithLabelValues(mode.String()).Inc()
	m.flushDuration.Observe(elapsed.Seconds())
	m.flushKeys.Observe(float64(len(keys)))
}

func (m *Metrics) ParseFailure(key string, err error) {
	m.parseFailuresTotal.WithLabelValues(key).Inc()
}

func (m *Metrics) ExternalNavigation(keys []string) {
	m.externalNavigations.Inc()
}

package netcode

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsConfig struct {
	// Namespace prefixes every metric name (default: "duckpond").
	Namespace string

	ConstLabels prometheus.Labels

	// Registry receives the collectors. Default: a fresh prometheus.Registry,
	// so several sessions in one process never collide.
	Registry prometheus.Registerer
}

type MetricsOption func(*MetricsConfig)

func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics are the session's Prometheus collectors.
type Metrics struct {
	FramesReceived     prometheus.Counter
	FramesUndecodable  *prometheus.CounterVec
	EventsPublished    *prometheus.CounterVec
	EventsLogged       *prometheus.CounterVec
	PayloadErrors      *prometheus.CounterVec
	ReadErrors         prometheus.Counter
	WritesSent         *prometheus.CounterVec
	WritesDropped      *prometheus.CounterVec
	WritesFailed       *prometheus.CounterVec
	BootstrapState     prometheus.Gauge
	InstalledConnCount prometheus.Gauge
}

func CreateMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "duckpond",
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(config.Registry)
	ns := config.Namespace
	labels := config.ConstLabels

	return &Metrics{
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "pump", Name: "frames_received_total",
			Help: "Frames taken from the inbound buffer", ConstLabels: labels,
		}),
		FramesUndecodable: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "pump", Name: "frames_undecodable_total",
			Help: "Frames that degraded to the empty action", ConstLabels: labels,
		}, []string{"reason"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "dispatch", Name: "events_published_total",
			Help: "Domain events published to the event bus", ConstLabels: labels,
		}, []string{"action"}),
		EventsLogged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "dispatch", Name: "events_logged_total",
			Help: "Actions that were logged but not published", ConstLabels: labels,
		}, []string{"action"}),
		PayloadErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "dispatch", Name: "payload_errors_total",
			Help: "Payload decode failures, by action and outcome", ConstLabels: labels,
		}, []string{"action", "outcome"}),
		ReadErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "pump", Name: "read_errors_total",
			Help: "Non would-block read errors", ConstLabels: labels,
		}),
		WritesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "relay", Name: "writes_sent_total",
			Help: "Frames accepted by the outbound buffer", ConstLabels: labels,
		}, []string{"intent"}),
		WritesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "relay", Name: "writes_dropped_total",
			Help: "Frames dropped because the outbound buffer was full", ConstLabels: labels,
		}, []string{"intent"}),
		WritesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "relay", Name: "writes_failed_total",
			Help: "Frames that failed to encode or write", ConstLabels: labels,
		}, []string{"intent"}),
		BootstrapState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "bootstrap", Name: "state",
			Help: "0=not_started 1=in_flight 2=ready 3=failed", ConstLabels: labels,
		}),
		InstalledConnCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "session", Name: "connections",
			Help: "Installed connections", ConstLabels: labels,
		}),
	}
}

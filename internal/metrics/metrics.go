package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "presence"

// Metrics holds the counters and gauges of the presence service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	TogglesTotal       *prometheus.CounterVec
	WritesTotal        *prometheus.CounterVec
	ConfirmationsTotal prometheus.Counter
	StaleObservations  prometheus.Counter
	ActiveControllers  prometheus.Gauge

	WSConnectionsTotal  prometheus.Counter
	WSActiveConnections prometheus.Gauge

	ConversationsStarted prometheus.Counter
	ConversationsEnded   *prometheus.CounterVec
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers all metrics with a custom registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "endpoint"},
		),
		TogglesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "toggles_total",
				Help:      "User availability toggles by outcome",
			},
			[]string{"result"},
		),
		WritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "availability_writes_total",
				Help:      "Fire-and-forget availability writes by outcome",
			},
			[]string{"result"},
		),
		ConfirmationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pending_confirmations_total",
				Help:      "Pending intents confirmed by a matching remote observation",
			},
		),
		StaleObservations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_observations_total",
				Help:      "Remote observations ignored because a different intent was pending",
			},
		),
		ActiveControllers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_controllers",
				Help:      "Number of open availability controllers",
			},
		),
		WSConnectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_connections_total",
				Help:      "Total number of presence WebSocket connections",
			},
		),
		WSActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_active_connections",
				Help:      "Number of active presence WebSocket connections",
			},
		),
		ConversationsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversations_started_total",
				Help:      "Total number of conversations started",
			},
		),
		ConversationsEnded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversations_ended_total",
				Help:      "Total number of conversations ended, by reason",
			},
			[]string{"reason"},
		),
	}
}

// Toggle results.
const (
	ToggleAccepted  = "accepted"
	ToggleDenied    = "denied"
	ToggleUnchanged = "unchanged"
)

func (m *Metrics) RecordToggle(result string) {
	if m == nil {
		return
	}
	m.TogglesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordWrite(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.WritesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordConfirmation() {
	if m == nil {
		return
	}
	m.ConfirmationsTotal.Inc()
}

func (m *Metrics) RecordStaleObservation() {
	if m == nil {
		return
	}
	m.StaleObservations.Inc()
}

func (m *Metrics) ControllerOpened() {
	if m == nil {
		return
	}
	m.ActiveControllers.Inc()
}

func (m *Metrics) ControllerClosed() {
	if m == nil {
		return
	}
	m.ActiveControllers.Dec()
}

func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.WSConnectionsTotal.Inc()
	m.WSActiveConnections.Inc()
}

func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.WSActiveConnections.Dec()
}

func (m *Metrics) ConversationStarted() {
	if m == nil {
		return
	}
	m.ConversationsStarted.Inc()
}

func (m *Metrics) ConversationEnded(reason string) {
	if m == nil {
		return
	}
	m.ConversationsEnded.WithLabelValues(reason).Inc()
}

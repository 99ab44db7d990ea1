// Package metrics exposes prometheus collectors for the client runtime:
// channel health, delivery volume, and the unread badge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. A nil *Metrics is valid everywhere and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	reconnectAttempts prometheus.Counter
	eventsReceived    prometheus.Counter
	connectionState   prometheus.Gauge
	unread            prometheus.Gauge
}

// New creates a registry with all client collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_reconnect_attempts_total",
			Help: "Handshake attempts made by the realtime notifier.",
		}),
		eventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_events_received_total",
			Help: "Notification events delivered over the realtime channel.",
		}),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notify_connection_state",
			Help: "Realtime channel state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting).",
		}),
		unread: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notify_unread_count",
			Help: "Unread notifications in the inbox.",
		}),
	}
	m.registry.MustRegister(m.reconnectAttempts, m.eventsReceived, m.connectionState, m.unread)
	return m
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ConnectAttempt counts one handshake attempt.
func (m *Metrics) ConnectAttempt() {
	if m != nil {
		m.reconnectAttempts.Inc()
	}
}

// EventReceived counts one delivered event.
func (m *Metrics) EventReceived() {
	if m != nil {
		m.eventsReceived.Inc()
	}
}

// SetConnectionState records the channel state ordinal.
func (m *Metrics) SetConnectionState(state int) {
	if m != nil {
		m.connectionState.Set(float64(state))
	}
}

// SetUnread records the inbox unread count.
func (m *Metrics) SetUnread(n int) {
	if m != nil {
		m.unread.Set(float64(n))
	}
}

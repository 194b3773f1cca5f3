package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons reported on relay_messages_dropped_total.
const (
	ReasonMalformed     = "malformed"
	ReasonNoTarget      = "no_target"
	ReasonUnknownTarget = "unknown_target"
	ReasonSendFailed    = "send_failed"
)

// Metrics holds the relay's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Rooms   prometheus.Gauge
	Peers   prometheus.Gauge
	Control *prometheus.CounterVec
	Routed  prometheus.Counter
	Dropped *prometheus.CounterVec
	Kicked  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "relay_rooms",
			Help: "Rooms with at least one member.",
		}),
		Peers: f.NewGauge(prometheus.GaugeOpts{
			Name: "relay_peers",
			Help: "Admitted peers across all rooms.",
		}),
		Control: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_control_messages_total",
			Help: "Control messages enqueued, by type.",
		}, []string{"type"}),
		Routed: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_routed_total",
			Help: "Peer messages delivered to their target.",
		}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_dropped_total",
			Help: "Peer messages not delivered, by reason.",
		}, []string{"reason"}),
		Kicked: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_peers_kicked_total",
			Help: "Connections closed by the slow-peer policy.",
		}),
	}
}

func (m *Metrics) roomOpened() {
	if m != nil {
		m.Rooms.Inc()
	}
}

func (m *Metrics) roomClosed() {
	if m != nil {
		m.Rooms.Dec()
	}
}

func (m *Metrics) peerJoined() {
	if m != nil {
		m.Peers.Inc()
	}
}

func (m *Metrics) peerLeft() {
	if m != nil {
		m.Peers.Dec()
	}
}

func (m *Metrics) control(typ string, n int) {
	if m != nil && n > 0 {
		m.Control.WithLabelValues(typ).Add(float64(n))
	}
}

func (m *Metrics) kicked() {
	if m != nil {
		m.Kicked.Inc()
	}
}

// MessageRouted counts one delivered peer message.
func (m *Metrics) MessageRouted() {
	if m != nil {
		m.Routed.Inc()
	}
}

// MessageDropped counts one undelivered peer message.
func (m *Metrics) MessageDropped(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}

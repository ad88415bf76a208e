package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the viewer's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	FramesReceived  *prometheus.CounterVec
	FramesMalformed prometheus.Counter
	ConnectAttempts *prometheus.CounterVec
	Reconnects      prometheus.Counter
	Actions         *prometheus.CounterVec
	Connected       prometheus.Gauge
	ReplicaMessages prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. Tests pass
// a fresh registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "queueview",
				Name:      "frames_received_total",
				Help:      "Server frames decoded, by event kind",
			},
			[]string{"kind"},
		),
		FramesMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queueview",
			Name:      "frames_malformed_total",
			Help:      "Server frames dropped because they could not be decoded",
		}),
		ConnectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "queueview",
				Name:      "connect_attempts_total",
				Help:      "Websocket connection attempts, by result",
			},
			[]string{"result"},
		),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queueview",
			Name:      "reconnect_checks_total",
			Help:      "Reconnect checks that found no active transport",
		}),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "queueview",
				Name:      "actions_total",
				Help:      "User actions, by action name and result (sent, dropped, failed)",
			},
			[]string{"action", "result"},
		),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "queueview",
			Name:      "connected",
			Help:      "1 while a websocket transport is active",
		}),
		ReplicaMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "queueview",
			Name:      "replica_messages",
			Help:      "Messages currently held in the local replica",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.FramesReceived,
			m.FramesMalformed,
			m.ConnectAttempts,
			m.Reconnects,
			m.Actions,
			m.Connected,
			m.ReplicaMessages,
		)
	}
	return m
}

func (m *Metrics) frameReceived(kind string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) frameMalformed() {
	if m == nil {
		return
	}
	m.FramesMalformed.Inc()
}

func (m *Metrics) connectAttempt(result string) {
	if m == nil {
		return
	}
	m.ConnectAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) reconnectCheck() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

func (m *Metrics) action(name, result string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(name, result).Inc()
}

func (m *Metrics) setConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

func (m *Metrics) setReplicaSize(n int) {
	if m == nil {
		return
	}
	m.ReplicaMessages.Set(float64(n))
}

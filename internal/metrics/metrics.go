package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Registry *prometheus.Registry

	framesReceived *prometheus.CounterVec
	framesDropped  prometheus.Counter
	actionsSent    *prometheus.CounterVec
	sendFailures   prometheus.Counter
	reconnects     prometheus.Counter
	connected      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classchat",
			Name:      "events_received_total",
			Help:      "Inbound gateway events by type.",
		}, []string{"type"}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "classchat",
			Name:      "frames_dropped_total",
			Help:      "Inbound frames discarded by the normalizer.",
		}),
		actionsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classchat",
			Name:      "actions_sent_total",
			Help:      "Outbound actions queued by type.",
		}, []string{"action"}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "classchat",
			Name:      "send_failures_total",
			Help:      "Outbound actions that could not be queued.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "classchat",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts after a dropped connection.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "classchat",
			Name:      "connected",
			Help:      "1 while the gateway connection is open.",
		}),
	}
	m.Registry.MustRegister(
		m.framesReceived,
		m.framesDropped,
		m.actionsSent,
		m.sendFailures,
		m.reconnects,
		m.connected,
	)
	return m
}

func (m *Metrics) EventReceived(eventType string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(eventType).Inc()
}

func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

func (m *Metrics) ActionSent(action string) {
	if m == nil {
		return
	}
	m.actionsSent.WithLabelValues(action).Inc()
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutboxResultPublished = "published"
	OutboxResultFailed    = "failed"
	OutboxResultTerminal  = "terminal"
)

// OutboxMetrics covers the publisher loop.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	backlog prometheus.Gauge
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retailhive_outbox_events_total",
		Help: "Outbox rows processed by event type and result.",
	}, []string{"event_type", "result"})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "retailhive_outbox_backlog",
		Help: "Unpublished outbox rows still eligible for delivery.",
	})
	reg.MustRegister(events, backlog)
	return &OutboxMetrics{events: events, backlog: backlog}
}

func (m *OutboxMetrics) IncEvent(eventType, result string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), result).Inc()
}

func (m *OutboxMetrics) SetBacklog(n int64) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(n))
}

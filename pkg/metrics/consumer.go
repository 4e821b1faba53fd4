package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	ConsumerOutcomeAck       = "ack"
	ConsumerOutcomeNack      = "nack"
	ConsumerOutcomeDuplicate = "duplicate"
)

// ConsumerMetrics counts Pub/Sub deliveries handled by the workers.
type ConsumerMetrics struct {
	messages *prometheus.CounterVec
}

func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retailhive_consumer_messages_total",
		Help: "Messages handled per consumer, event type and outcome.",
	}, []string{"consumer", "event_type", "outcome"})
	reg.MustRegister(messages)
	return &ConsumerMetrics{messages: messages}
}

func (m *ConsumerMetrics) Inc(consumer, eventType, outcome string) {
	if m == nil || m.messages == nil {
		return
	}
	m.messages.WithLabelValues(normalizeLabel(consumer), normalizeLabel(eventType), outcome).Inc()
}

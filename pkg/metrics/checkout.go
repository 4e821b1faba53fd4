package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const (
	CheckoutOutcomeSuccess   = "success"
	CheckoutOutcomeEmptyCart = "empty_cart"
	CheckoutOutcomeInvalid   = "invalid"
	CheckoutOutcomeFailure   = "failure"
)

// CheckoutMetrics counts order placement attempts and order value.
type CheckoutMetrics struct {
	attempts   *prometheus.CounterVec
	orderTotal prometheus.Histogram
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retailhive_checkout_attempts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	orderTotal := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "retailhive_order_total_amount",
		Help:    "Total amount of placed orders.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	})
	reg.MustRegister(attempts, orderTotal)
	return &CheckoutMetrics{attempts: attempts, orderTotal: orderTotal}
}

func (m *CheckoutMetrics) IncAttempt(outcome string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *CheckoutMetrics) ObserveOrderTotal(total decimal.Decimal) {
	if m == nil || m.orderTotal == nil {
		return
	}
	m.orderTotal.Observe(total.InexactFloat64())
}

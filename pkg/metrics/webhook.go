package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records the outcome of provider webhook deliveries.
type WebhookMetrics struct {
	received *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Provider webhook deliveries by outcome.",
	}, []string{"provider", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_handle_duration_seconds",
		Help:    "End-to-end webhook handling duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	reg.MustRegister(received, duration)
	return &WebhookMetrics{received: received, duration: duration}
}

// Outcome labels for webhook deliveries.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeUnhandled = "unhandled"
	OutcomeFailed    = "failed"
)

// IncReceived counts one delivery for the provider with the given outcome.
func (w *WebhookMetrics) IncReceived(provider, outcome string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// ObserveDuration records how long a delivery took to handle.
func (w *WebhookMetrics) ObserveDuration(provider string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(provider)).Observe(duration.Seconds())
}

// PayoutMetrics records payout dispatch outcomes.
type PayoutMetrics struct {
	dispatched *prometheus.CounterVec
	amount     *prometheus.CounterVec
}

// NewPayoutMetrics registers the payout metrics on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payouts_dispatched_total",
		Help: "Payout attempts by provider and status.",
	}, []string{"provider", "status"})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payouts_amount_minor_total",
		Help: "Sum of successfully dispatched payout amounts in minor units.",
	}, []string{"provider", "currency"})
	reg.MustRegister(dispatched, amount)
	return &PayoutMetrics{dispatched: dispatched, amount: amount}
}

// IncDispatched counts one payout attempt for the provider with the given status.
func (p *PayoutMetrics) IncDispatched(provider, status string) {
	if p == nil || p.dispatched == nil {
		return
	}
	p.dispatched.WithLabelValues(normalizeLabel(provider), normalizeLabel(status)).Inc()
}

// AddAmount accumulates the dispatched amount for the provider and currency.
func (p *PayoutMetrics) AddAmount(provider, currency string, amountMinor int64) {
	if p == nil || p.amount == nil || amountMinor <= 0 {
		return
	}
	p.amount.WithLabelValues(normalizeLabel(provider), normalizeLabel(currency)).Add(float64(amountMinor))
}

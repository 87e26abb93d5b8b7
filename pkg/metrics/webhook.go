package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records per-event-type processing outcomes.
type WebhookMetrics struct {
	duration *prometheus.HistogramVec
	handled  *prometheus.CounterVec
	failed   *prometheus.CounterVec
	unlinked prometheus.Counter
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_event_duration_seconds",
		Help:    "Duration of webhook event handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	handled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_event_handled",
		Help: "Webhook events handled to completion.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_event_failed",
		Help: "Webhook events that ended in a retryable failure.",
	}, []string{"event_type"})
	unlinked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_subscription_unlinked",
		Help: "Subscription records persisted without a resolved identity.",
	})
	reg.MustRegister(duration, handled, failed, unlinked)
	return &WebhookMetrics{
		duration: duration,
		handled:  handled,
		failed:   failed,
		unlinked: unlinked,
	}
}

// ObserveDuration records how long an event took to handle.
func (m *WebhookMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncHandled increments the handled counter for the event type.
func (m *WebhookMetrics) IncHandled(eventType string) {
	if m == nil || m.handled == nil {
		return
	}
	m.handled.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the failure counter for the event type.
func (m *WebhookMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncUnlinked counts a subscription persisted without an identity.
func (m *WebhookMetrics) IncUnlinked() {
	if m == nil || m.unlinked == nil {
		return
	}
	m.unlinked.Inc()
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}

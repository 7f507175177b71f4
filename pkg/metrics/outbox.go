package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutboxPublished    = "published"
	OutboxRetry        = "retry"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics tracks the relay from the outbox table to the broker.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	publish *prometheus.HistogramVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_total",
			Help: "Outbox rows handled by event type and result.",
		}, []string{"event_type", "result"}),
		publish: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outbox_publish_seconds",
			Help:    "Broker publish latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"broker"}),
	}
	reg.MustRegister(m.events, m.publish)
	return m
}

func (o *OutboxMetrics) IncEvent(eventType, result string) {
	if o == nil || o.events == nil {
		return
	}
	o.events.WithLabelValues(eventType, result).Inc()
}

func (o *OutboxMetrics) ObservePublish(broker string, d time.Duration) {
	if o == nil || o.publish == nil {
		return
	}
	o.publish.WithLabelValues(broker).Observe(d.Seconds())
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics tracks calls to the external payment gateway.
type GatewayMetrics struct {
	calls    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	breaker  *prometheus.GaugeVec
	outcomes *prometheus.CounterVec
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_calls_total",
		Help: "Payment gateway calls by provider, operation and result.",
	}, []string{"provider", "operation", "result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_call_seconds",
		Help:    "Latency of payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})
	breaker := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "payment_gateway_breaker_state",
		Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open).",
	}, []string{"provider"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_settlements_total",
		Help: "Settlement outcomes by result.",
	}, []string{"result"})
	reg.MustRegister(calls, latency, breaker, outcomes)
	return &GatewayMetrics{
		calls:    calls,
		latency:  latency,
		breaker:  breaker,
		outcomes: outcomes,
	}
}

// ObserveCall records one gateway call.
func (g *GatewayMetrics) ObserveCall(provider, operation, result string, duration time.Duration) {
	if g == nil || g.calls == nil {
		return
	}
	g.calls.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation), normalizeLabel(result)).Inc()
	g.latency.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Observe(duration.Seconds())
}

// SetBreakerState publishes the breaker state as a number.
func (g *GatewayMetrics) SetBreakerState(provider string, state int) {
	if g == nil || g.breaker == nil {
		return
	}
	g.breaker.WithLabelValues(normalizeLabel(provider)).Set(float64(state))
}

// IncSettlement counts a settlement outcome such as "paid" or "declined".
func (g *GatewayMetrics) IncSettlement(result string) {
	if g == nil || g.outcomes == nil {
		return
	}
	g.outcomes.WithLabelValues(normalizeLabel(result)).Inc()
}

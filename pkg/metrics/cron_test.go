package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "payment-reconcile"
	metrics.ObserveRun(job, 250*time.Millisecond, nil)
	metrics.ObserveRun(job, 100*time.Millisecond, errors.New("gateway down"))
	metrics.IncSkipped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "cron_job_runs_total")
	if runs == nil || len(runs.GetMetric()) != 2 {
		t.Fatalf("expected ok and error series")
	}
	if got, err := fetchCounterValue(mfs, "cron_job_runs_total", "result", JobResultError); err != nil || got != 1 {
		t.Fatalf("expected one failed run, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got < 0.3 {
		t.Fatalf("expected duration sum >= 0.3, got %f", got)
	}
	last := findMetricFamily(mfs, "cron_job_last_success_timestamp_seconds")
	if last == nil || last.GetMetric()[0].GetGauge().GetValue() <= 0 {
		t.Fatalf("expected last success timestamp")
	}
	skipped := findMetricFamily(mfs, "cron_cycles_skipped_total")
	if skipped == nil || skipped.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one skipped cycle")
	}
}

func TestNilCronMetricsAreNoops(t *testing.T) {
	var metrics *CronJobMetrics
	metrics.ObserveRun("x", time.Second, nil)
	metrics.IncSkipped()
	NewCronJobMetrics(nil).ObserveRun("x", time.Second, errors.New("boom"))
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestGatewayMetricsCountsCallsAndSettlements(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewGatewayMetrics(reg)
	metrics.ObserveCall("stripe", "create_intent", "ok", 40*time.Millisecond)
	metrics.ObserveCall("stripe", "create_intent", "ok", 60*time.Millisecond)
	metrics.IncSettlement("paid")
	metrics.SetBreakerState("stripe", 2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "checkout_settlements_total", "result", "paid"); err != nil || got != 1 {
		t.Fatalf("expected one paid settlement, got %f (%v)", got, err)
	}
	calls := findMetricFamily(mfs, "payment_gateway_calls_total")
	if calls == nil || len(calls.GetMetric()) != 1 || calls.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatalf("expected two gateway calls")
	}
	breaker := findMetricFamily(mfs, "payment_gateway_breaker_state")
	if breaker == nil || breaker.GetMetric()[0].GetGauge().GetValue() != 2 {
		t.Fatalf("expected open breaker gauge")
	}
}

func TestGatewayMetricsLabelBlankValuesUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewGatewayMetrics(reg)
	metrics.IncSettlement("")
	metrics.ObserveCall("", "get_intent", "ok", time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "checkout_settlements_total", "result", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown settlement label, got %f (%v)", got, err)
	}
	if _, err := fetchCounterValue(mfs, "payment_gateway_calls_total", "provider", "unknown"); err != nil {
		t.Fatalf("expected unknown provider label: %v", err)
	}
}

func TestNilGatewayMetricsAreNoops(t *testing.T) {
	var metrics *GatewayMetrics
	metrics.ObserveCall("stripe", "get_intent", "error", time.Second)
	metrics.IncSettlement("declined")
	NewGatewayMetrics(nil).SetBreakerState("square", 1)
}

func TestOutboxMetricsCountsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewOutboxMetrics(reg)
	metrics.IncEvent("order_paid", OutboxPublished)
	metrics.IncEvent("order_paid", OutboxPublished)
	metrics.IncEvent("order_paid", OutboxDeadLettered)
	metrics.ObservePublish("kafka", 20*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_events_total", "result", OutboxPublished); err != nil || got != 2 {
		t.Fatalf("expected two published, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "outbox_publish_seconds", "broker", "kafka"); err != nil || got <= 0 {
		t.Fatalf("expected publish latency, got %f (%v)", got, err)
	}

	var nilMetrics *OutboxMetrics
	nilMetrics.IncEvent("x", OutboxRetry)
}

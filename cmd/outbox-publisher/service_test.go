package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			orderEvent(t, uuid.New(), "event-one", 0),
			orderEvent(t, uuid.New(), "event-two", 0),
		},
	}
	sink := &fakeBroker{errs: []error{errors.New("transient"), nil}}
	service := newTestService(t, repo, sink, &fakeRegistry{resolved: ordersResolved()}, &fakeDLQRepo{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("expected second row published, got %v", repo.published)
	}
}

func TestServiceHoldsBackLaterEventsOfFailedAggregate(t *testing.T) {
	orderID := uuid.New()
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			orderEvent(t, orderID, "created", 0),
			orderEvent(t, orderID, "paid", 0),
		},
	}
	sink := &fakeBroker{errs: []error{errors.New("transient")}}
	service := newTestService(t, repo, sink, &fakeRegistry{resolved: ordersResolved()}, &fakeDLQRepo{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("a batch with only failures should let the loop back off")
	}
	if len(sink.calls) != 1 {
		t.Fatalf("expected the second event to wait for the first, got %d publishes", len(sink.calls))
	}
	if len(repo.published) != 0 {
		t.Fatalf("nothing should be published")
	}
}

func TestServicePublishesKeyedMessage(t *testing.T) {
	event := orderEvent(t, uuid.New(), "keyed", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	sink := &fakeBroker{}
	service := newTestService(t, repo, sink, &fakeRegistry{resolved: ordersResolved()}, &fakeDLQRepo{}, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(sink.calls) != 1 {
		t.Fatalf("expected one publish, got %d", len(sink.calls))
	}
	call := sink.calls[0]
	if call.topic != "orders-topic" {
		t.Fatalf("unexpected topic %q", call.topic)
	}
	if call.key != event.AggregateID.String() {
		t.Fatalf("expected aggregate id as key, got %q", call.key)
	}
	if call.attributes["event_type"] != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event_type attribute %q", call.attributes["event_type"])
	}
	if !bytes.Equal(call.data, event.Payload) {
		t.Fatalf("payload should be forwarded unchanged")
	}
}

func TestServiceProcessBatchWritesDLQOnNonRetryable(t *testing.T) {
	event := orderEvent(t, uuid.New(), "nonretryable", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, &fakeBroker{}, reg, dlqRepo, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	entry := dlqRepo.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
}

func TestServiceProcessBatchWritesDLQOnMaxAttempts(t *testing.T) {
	event := orderEvent(t, uuid.New(), "max-attempts", 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	sink := &fakeBroker{errs: []error{errors.New("transient")}}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, sink, &fakeRegistry{resolved: ordersResolved()}, dlqRepo, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	if dlqRepo.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected error reason: %s", dlqRepo.entries[0].ErrorReason)
	}
}

func TestServiceCountsOutcomes(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			orderEvent(t, uuid.New(), "ok", 0),
			orderEvent(t, uuid.New(), "retry", 0),
		},
	}
	sink := &fakeBroker{errs: []error{nil, errors.New("transient")}}
	service := newTestService(t, repo, sink, &fakeRegistry{resolved: ordersResolved()}, &fakeDLQRepo{}, nil)
	reg := prometheus.NewRegistry()
	service.metrics = metrics.NewOutboxMetrics(reg)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	results := map[string]float64{}
	var publishes uint64
	for _, mf := range mfs {
		switch mf.GetName() {
		case "outbox_events_total":
			for _, m := range mf.GetMetric() {
				for _, label := range m.GetLabel() {
					if label.GetName() == "result" {
						results[label.GetValue()] = m.GetCounter().GetValue()
					}
				}
			}
		case "outbox_publish_seconds":
			publishes = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	if results[metrics.OutboxPublished] != 1 || results[metrics.OutboxRetry] != 1 {
		t.Fatalf("unexpected outcome counts %v", results)
	}
	if publishes != 2 {
		t.Fatalf("expected two publish observations, got %d", publishes)
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(0, time.Second, 10*time.Second); got != 2*time.Second {
		t.Fatalf("expected doubled base, got %s", got)
	}
	if got := nextBackoff(8*time.Second, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("expected cap, got %s", got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, sink broker, reg registryResolver, dlq dlqRepository, outboxCfgOverride *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	service, err := NewService(ServiceParams{
		Config:        &config.Config{Outbox: outboxCfg},
		Logger:        logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:            &fakeDB{},
		Broker:        sink,
		Repository:    repo,
		Registry:      reg,
		DLQRepository: dlq,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func orderEvent(tb testing.TB, orderID uuid.UUID, eventID string, attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelopePayload(tb, eventID),
		AttemptCount:  attempts,
	}
}

func ordersResolved() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         "orders-topic",
			AggregateType: enums.AggregateOrder,
		},
		Envelope: outbox.PayloadEnvelope{EventID: uuid.NewString(), OccurredAt: time.Now()},
		Payload:  &payloads.OrderCreatedEvent{},
	}
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error { return nil }

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type publishCall struct {
	topic      string
	key        string
	data       []byte
	attributes map[string]string
}

type fakeBroker struct {
	errs  []error
	calls []publishCall
}

func (f *fakeBroker) Ping(context.Context) error { return nil }

func (f *fakeBroker) Publish(_ context.Context, topic, key string, data []byte, attributes map[string]string) error {
	f.calls = append(f.calls, publishCall{topic: topic, key: key, data: data, attributes: attributes})
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Envelope.EventID = event.ID.String()
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

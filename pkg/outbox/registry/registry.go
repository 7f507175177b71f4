package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor says where an event type is published and how its payload
// decodes.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	newPayload    func() any
}

// ResolvedEvent is a decoded outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// Topics names the destinations on the configured broker. Order lifecycle
// events go to Orders, money movements to Payments.
type Topics struct {
	Orders   string
	Payments string
}

// NonRetryableError marks a row that can never publish; the publisher
// dead-letters it instead of retrying.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func nonRetryable(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

func describe[T any](event enums.OutboxEventType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     event,
		AggregateType: event.Aggregate(),
		Topic:         topic,
		newPayload:    func() any { return new(T) },
	}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func NewEventRegistry(topics Topics) (*EventRegistry, error) {
	if topics.Orders == "" || topics.Payments == "" {
		return nil, errors.New("orders and payments topics are required")
	}
	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	for _, desc := range []EventDescriptor{
		describe[payloads.OrderCreatedEvent](enums.EventOrderCreated, topics.Orders),
		describe[payloads.OrderConfirmedEvent](enums.EventOrderConfirmed, topics.Orders),
		describe[payloads.OrderReleasedEvent](enums.EventOrderReleased, topics.Orders),
		describe[payloads.OrderPaidEvent](enums.EventOrderPaid, topics.Payments),
		describe[payloads.PaymentDeclinedEvent](enums.EventPaymentDeclined, topics.Payments),
	} {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topics lists every destination the registry publishes to, sorted.
func (r *EventRegistry) Topics() []string {
	var topics []string
	for _, desc := range r.entries {
		if !slices.Contains(topics, desc.Topic) {
			topics = append(topics, desc.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve checks the row against its descriptor and decodes the typed
// payload. Every failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, nonRetryable("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}
	payload := desc.newPayload()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}

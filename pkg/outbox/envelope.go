package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the envelope version written by Emit.
const CurrentVersion = 1

// ActorRef names the shopper behind an event; jobs and webhooks leave it nil.
type ActorRef struct {
	ShopperID uuid.UUID `json:"shopperId"`
	Source    string    `json:"source,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and shipped
// unchanged to the broker.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// seal encodes event.Data and wraps it with a fresh event id.
func seal(event DomainEvent, now time.Time) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = CurrentVersion
	}
	if event.OccurredAt.IsZero() {
		env.OccurredAt = now.UTC()
	}
	return env, nil
}

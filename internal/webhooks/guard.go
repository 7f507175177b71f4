package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultEventTTL outlives the retry window of both providers.
const DefaultEventTTL = 72 * time.Hour

type eventStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(ctx context.Context, keys ...string) error
}

// Guard remembers delivered provider event ids so a redelivery is acknowledged
// without being applied twice.
type Guard struct {
	store    eventStore
	ttl      time.Duration
	provider string
}

func NewGuard(store eventStore, provider string, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("event store is required")
	}
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, errors.New("provider is required")
	}
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &Guard{store: store, ttl: ttl, provider: provider}, nil
}

// Claim records eventID and reports whether this delivery is the first one.
func (g *Guard) Claim(ctx context.Context, eventID string) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	first, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s event: %w", g.provider, err)
	}
	return first, nil
}

// Release forgets eventID so the provider's retry is processed again.
func (g *Guard) Release(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("webhook:"+g.provider, eventID), nil
}

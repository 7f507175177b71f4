// Package gatewaytest provides an in-memory payment gateway for tests and
// local development.
package gatewaytest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/angelmondragon/storefront-backend/internal/payments"
)

// Test card tokens understood by the fake gateway.
const (
	TokenSuccess    = "tok_visa"
	TokenDeclined   = "tok_chargeDeclined"
	TokenProcessing = "tok_processing"

	DeclineMessage = "Your card was declined."
)

// ErrUnavailable simulates a transport failure.
var ErrUnavailable = errors.New("gateway unreachable")

// Gateway is a concurrency-safe fake that honours idempotency keys.
type Gateway struct {
	mu          sync.Mutex
	seq         int
	intents     map[string]*payments.Intent
	byKey       map[string]string
	unavailable bool
	calls       map[string]int
}

func New() *Gateway {
	return &Gateway{
		intents: make(map[string]*payments.Intent),
		byKey:   make(map[string]string),
		calls:   make(map[string]int),
	}
}

func (g *Gateway) Name() string { return "fake" }

// SetUnavailable makes every following call fail as a transport error.
func (g *Gateway) SetUnavailable(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unavailable = down
}

// SetStatus moves an intent as if the gateway progressed it out of band.
func (g *Gateway) SetStatus(intentID string, status payments.IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if intent, ok := g.intents[intentID]; ok {
		intent.Status = status
	}
}

// SetAmount rewrites the amount the gateway reports for an intent.
func (g *Gateway) SetAmount(intentID string, cents int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if intent, ok := g.intents[intentID]; ok {
		intent.AmountCents = cents
	}
}

// Calls reports how many times op was invoked.
func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// IntentCount is the number of distinct intents ever created.
func (g *Gateway) IntentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.intents)
}

func (g *Gateway) CreateIntent(ctx context.Context, req payments.CreateIntentRequest) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["create"]++
	if g.unavailable {
		return nil, payments.GatewayUnavailableError(ErrUnavailable)
	}
	if id, ok := g.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return copyIntent(g.intents[id]), nil
	}
	g.seq++
	id := fmt.Sprintf("pi_fake_%d", g.seq)
	intent := &payments.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		OrderID:      req.OrderID.String(),
		Status:       payments.IntentRequiresPaymentMethod,
	}
	g.intents[id] = intent
	if req.IdempotencyKey != "" {
		g.byKey[req.IdempotencyKey] = id
	}
	return copyIntent(intent), nil
}

func (g *Gateway) GetIntent(ctx context.Context, intentID string) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["get"]++
	if g.unavailable {
		return nil, payments.GatewayUnavailableError(ErrUnavailable)
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("intent %s not found", intentID)
	}
	return copyIntent(intent), nil
}

func (g *Gateway) ConfirmIntent(ctx context.Context, req payments.ConfirmRequest) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["confirm"]++
	if g.unavailable {
		return nil, payments.GatewayUnavailableError(ErrUnavailable)
	}
	intent, ok := g.intents[req.IntentID]
	if !ok {
		return nil, fmt.Errorf("intent %s not found", req.IntentID)
	}
	switch req.PaymentMethodToken {
	case TokenDeclined:
		intent.Status = payments.IntentFailed
		intent.DeclineReason = DeclineMessage
		return nil, payments.DeclinedError(intent.ID, DeclineMessage)
	case TokenProcessing:
		intent.Status = payments.IntentProcessing
	default:
		intent.Status = payments.IntentSucceeded
	}
	return copyIntent(intent), nil
}

func copyIntent(intent *payments.Intent) *payments.Intent {
	if intent == nil {
		return nil
	}
	out := *intent
	return &out
}

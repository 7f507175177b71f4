package payments

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// BreakerConfig tunes the circuit breaker around a gateway.
type BreakerConfig struct {
	// Failures is the number of consecutive gateway failures that opens the breaker.
	Failures    uint32
	OpenTimeout time.Duration
	CallTimeout time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Failures == 0 {
		c.Failures = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	return c
}

// breakerGateway fails fast while the provider is unhealthy. Declines and
// other well-formed answers never count as failures.
type breakerGateway struct {
	next    Gateway
	cb      *gobreaker.CircuitBreaker[*Intent]
	timeout time.Duration
	metrics *metrics.GatewayMetrics
}

// WithBreaker wraps next in a circuit breaker with per-call timeouts.
func WithBreaker(next Gateway, cfg BreakerConfig, logg *logger.Logger, m *metrics.GatewayMetrics) Gateway {
	cfg = cfg.withDefaults()
	provider := next.Name()
	settings := gobreaker.Settings{
		Name:        "payments-" + provider,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		IsSuccessful: func(err error) bool {
			return !isGatewayFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.SetBreakerState(provider, int(to))
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "payments.breaker_state_changed")
		},
	}
	return &breakerGateway{
		next:    next,
		cb:      gobreaker.NewCircuitBreaker[*Intent](settings),
		timeout: cfg.CallTimeout,
		metrics: m,
	}
}

func (g *breakerGateway) Name() string { return g.next.Name() }

func (g *breakerGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	return g.call(ctx, "create_intent", func(ctx context.Context) (*Intent, error) {
		return g.next.CreateIntent(ctx, req)
	})
}

func (g *breakerGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	return g.call(ctx, "get_intent", func(ctx context.Context) (*Intent, error) {
		return g.next.GetIntent(ctx, intentID)
	})
}

func (g *breakerGateway) ConfirmIntent(ctx context.Context, req ConfirmRequest) (*Intent, error) {
	return g.call(ctx, "confirm_intent", func(ctx context.Context) (*Intent, error) {
		return g.next.ConfirmIntent(ctx, req)
	})
}

func (g *breakerGateway) call(ctx context.Context, op string, fn func(ctx context.Context) (*Intent, error)) (*Intent, error) {
	started := time.Now()
	intent, err := g.cb.Execute(func() (*Intent, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		intent, err := fn(callCtx)
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, GatewayUnavailableError(err)
		}
		return intent, err
	})
	g.metrics.ObserveCall(g.next.Name(), op, resultLabel(err), time.Since(started))
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, GatewayUnavailableError(err)
	}
	return intent, err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	case isGatewayFailure(err):
		return "error"
	case pkgerrors.IsReason(err, pkgerrors.ReasonPaymentDeclined):
		return "declined"
	default:
		return "client_error"
	}
}

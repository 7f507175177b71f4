package bootstrap

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/webhooks"
	squarewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/square"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/locks"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	pkgsquare "github.com/angelmondragon/storefront-backend/pkg/square"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// Services is the checkout domain wired against Postgres, Redis and the
// configured payment gateway.
type Services struct {
	Cart        cart.Service
	Addresses   address.Service
	Orders      orders.Service
	Payments    payments.Service
	Checkout    checkout.Service
	Suggestions *catalog.SuggestionService
}

// Gateway builds the configured provider wrapped in a circuit breaker.
func Gateway(ctx context.Context, cfg *config.Config, logg *logger.Logger, m *metrics.GatewayMetrics) (payments.Gateway, error) {
	var gateway payments.Gateway
	switch cfg.Payments.NormalizedProvider() {
	case config.PaymentsProviderSquare:
		client, err := pkgsquare.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, err
		}
		gateway, err = payments.NewSquareGateway(client)
		if err != nil {
			return nil, err
		}
	case config.PaymentsProviderStripe:
		client, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, err
		}
		gateway, err = payments.NewStripeGateway(client, logg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported payments provider %q", cfg.Payments.Provider)
	}

	return payments.WithBreaker(gateway, payments.BreakerConfig{
		Failures:    cfg.Payments.BreakerFailures,
		OpenTimeout: cfg.Payments.BreakerTimeout,
		CallTimeout: cfg.Payments.CallTimeout,
	}, logg, m), nil
}

// Build wires every domain service. Cart and order mutations share one Redis
// locker so the API and the cron worker serialize against each other.
func Build(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	gateway payments.Gateway,
	gatewayMetrics *metrics.GatewayMetrics,
) (Services, error) {
	locker, err := locks.NewRedisLocker(redisClient, cfg.Checkout.LockTTL, cfg.Checkout.LockWait)
	if err != nil {
		return Services{}, fmt.Errorf("locker: %w", err)
	}
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	catalogRepo := catalog.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	addressRepo := address.NewRepository(dbClient.DB())

	cartSvc, err := cart.NewService(cartRepo, catalogRepo, dbClient, locker, logg)
	if err != nil {
		return Services{}, fmt.Errorf("cart service: %w", err)
	}
	addressSvc, err := address.NewService(addressRepo, dbClient)
	if err != nil {
		return Services{}, fmt.Errorf("address service: %w", err)
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:              orders.NewRepository(dbClient.DB()),
		Carts:             cartRepo,
		Catalog:           catalogRepo,
		Addresses:         addressRepo,
		Tx:                dbClient,
		Locker:            locker,
		Outbox:            emitter,
		Logger:            logg,
		ShippingCostCents: cfg.Checkout.ShippingCostCents,
		Currency:          cfg.Payments.DefaultCurrency,
	})
	if err != nil {
		return Services{}, fmt.Errorf("orders service: %w", err)
	}
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Attempts: payments.NewAttemptRepository(dbClient.DB()),
		Orders:   orderSvc,
		Tx:       dbClient,
		Gateway:  gateway,
		Outbox:   emitter,
		Logger:   logg,
		Metrics:  gatewayMetrics,
	})
	if err != nil {
		return Services{}, fmt.Errorf("payments service: %w", err)
	}
	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Carts:     cartSvc,
		Addresses: addressSvc,
		Orders:    orderSvc,
		Payments:  paymentSvc,
		Locker:    locker,
		Logger:    logg,
	})
	if err != nil {
		return Services{}, fmt.Errorf("checkout service: %w", err)
	}
	suggestions, err := catalog.NewSuggestionService(catalogRepo, redisClient, logg, catalog.SuggestionConfig{
		Limit:          cfg.Search.SuggestionLimit,
		CacheTTL:       cfg.Search.SuggestionCacheTTL,
		MinQueryLength: cfg.Search.MinQueryLength,
	})
	if err != nil {
		return Services{}, fmt.Errorf("suggestion service: %w", err)
	}

	return Services{
		Cart:        cartSvc,
		Addresses:   addressSvc,
		Orders:      orderSvc,
		Checkout:    checkoutSvc,
		Payments:    paymentSvc,
		Suggestions: suggestions,
	}, nil
}

// Webhooks wires provider notifications into order reconciliation for each
// provider whose signing secret is configured.
func Webhooks(cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, reconciler webhooks.Reconciler) (routes.Webhooks, error) {
	var out routes.Webhooks
	if cfg.Stripe.SigningSecret() != "" {
		svc, err := stripewebhook.NewService(reconciler, logg)
		if err != nil {
			return out, fmt.Errorf("stripe webhook: %w", err)
		}
		guard, err := webhooks.NewGuard(redisClient, config.PaymentsProviderStripe, webhooks.DefaultEventTTL)
		if err != nil {
			return out, fmt.Errorf("stripe webhook guard: %w", err)
		}
		out.Stripe, out.StripeGuard = svc, guard
	}
	if cfg.Square.SigningSecret() != "" && cfg.Square.NotificationURL() != "" {
		svc, err := squarewebhook.NewService(reconciler, logg)
		if err != nil {
			return out, fmt.Errorf("square webhook: %w", err)
		}
		guard, err := webhooks.NewGuard(redisClient, config.PaymentsProviderSquare, webhooks.DefaultEventTTL)
		if err != nil {
			return out, fmt.Errorf("square webhook guard: %w", err)
		}
		out.Square, out.SquareGuard = svc, guard
	}
	return out, nil
}

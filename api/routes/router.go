package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	addresscontrollers "github.com/angelmondragon/storefront-backend/api/controllers/addresses"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	checkoutcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/checkout"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/payment"
	searchcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/search"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// searchRequestsPerWindow is generous: the debouncer already coalesces keystrokes.
const searchRequestsPerWindow = 600

type redisStore interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type suggester interface {
	Suggest(ctx context.Context, raw string) ([]catalog.Suggestion, error)
}

// Services are the domain services the HTTP surface fronts.
type Services struct {
	Cart        cart.Service
	Addresses   address.Service
	Orders      orders.Service
	Checkout    checkoutsvc.Service
	Suggestions suggester
	Webhooks    Webhooks
}

// Webhooks are mounted only for providers whose handler is set.
type Webhooks struct {
	Stripe      webhookcontrollers.StripeEventHandler
	StripeGuard webhookcontrollers.EventGuard
	Square      webhookcontrollers.SquareEventHandler
	SquareGuard webhookcontrollers.EventGuard
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient redisStore,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	apiPolicy := middleware.NewRateLimitPolicy(
		"api",
		cfg.RateLimit.Window,
		cfg.RateLimit.IPLimit,
		cfg.RateLimit.ShopperLimit,
	)
	searchPolicy := middleware.NewRateLimitPolicy("search", cfg.RateLimit.Window, searchRequestsPerWindow, 0)
	idempotent := middleware.Idempotency(redisClient, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisClient,
		}))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.With(middleware.RateLimit(searchPolicy, redisClient, logg)).
		Get("/search/suggestions", searchcontrollers.Suggestions(svc.Suggestions, logg))

	if svc.Webhooks.Stripe != nil || svc.Webhooks.Square != nil {
		r.Route("/api/v1/webhooks", func(r chi.Router) {
			if svc.Webhooks.Stripe != nil {
				r.Post("/stripe", webhookcontrollers.Stripe(svc.Webhooks.Stripe, cfg.Stripe, svc.Webhooks.StripeGuard, logg))
			}
			if svc.Webhooks.Square != nil {
				r.Post("/square", webhookcontrollers.Square(svc.Webhooks.Square, cfg.Square, svc.Webhooks.SquareGuard, logg))
			}
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.RateLimit(apiPolicy, redisClient, logg),
		)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.Fetch(svc.Cart, logg))
			r.Post("/", cartcontrollers.AddItem(svc.Cart, logg))
			r.Put("/{itemId}", cartcontrollers.UpdateItem(svc.Cart, logg))
			r.Delete("/{itemId}", cartcontrollers.RemoveItem(svc.Cart, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", addresscontrollers.List(svc.Addresses, logg))
			r.Post("/", addresscontrollers.Create(svc.Addresses, logg))
		})

		r.Get("/checkout", checkoutcontrollers.Begin(svc.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(idempotent).Post("/", ordercontrollers.Create(svc.Checkout, logg))
			r.Get("/", ordercontrollers.List(svc.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
			r.With(idempotent).Post("/{orderId}/cancel", ordercontrollers.Cancel(svc.Checkout, logg))
		})

		r.Route("/payment", func(r chi.Router) {
			r.With(idempotent).Post("/create-intent", paymentcontrollers.CreateIntent(svc.Checkout, logg))
			r.With(idempotent).Post("/authorize", paymentcontrollers.Authorize(svc.Checkout, logg))
			r.With(idempotent).Post("/confirm", paymentcontrollers.Confirm(svc.Checkout, logg))
			r.Get("/status/{orderId}", paymentcontrollers.Status(svc.Checkout, logg))
		})
	})

	return r
}

package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCart struct {
	cart.Service
}

func (stubCart) Get(ctx context.Context, shopperID uuid.UUID) (*cart.View, error) {
	return &cart.View{ShopperID: shopperID}, nil
}

type stubCheckout struct {
	checkout.Service
	placed int
}

func (s *stubCheckout) PlaceOrder(ctx context.Context, input checkout.PlaceOrderInput) (*checkout.State, error) {
	s.placed++
	return &checkout.State{Stage: checkout.StageAwaitingPayment}, nil
}

type stubSuggester struct{}

func (stubSuggester) Suggest(ctx context.Context, raw string) ([]catalog.Suggestion, error) {
	return []catalog.Suggestion{{Name: "Trail Shoe"}}, nil
}

type stubStripeEvents struct{}

func (stubStripeEvents) HandleEvent(ctx context.Context, event *stripe.Event) error {
	return nil
}

type stubGuard struct{}

func (stubGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	return true, nil
}

func (stubGuard) Release(ctx context.Context, eventID string) error {
	return nil
}

type fixture struct {
	handler  http.Handler
	checkout *stubCheckout
	cfg      *config.Config
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	cfg := &config.Config{
		App:       config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT:       config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 10},
		RateLimit: config.RateLimitConfig{Window: time.Minute, ShopperLimit: 100, IPLimit: 100},
		Stripe:    config.StripeConfig{WebhookSecret: "whsec_test"},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	co := &stubCheckout{}
	reg := prometheus.NewRegistry()

	handler := NewRouter(cfg, logg, stubPinger{}, pkgredis.FromClient(raw), reg, Services{
		Cart:        stubCart{},
		Checkout:    co,
		Suggestions: stubSuggester{},
		Webhooks:    Webhooks{Stripe: stubStripeEvents{}, StripeGuard: stubGuard{}},
	})
	return fixture{handler: handler, checkout: co, cfg: cfg}
}

func (f fixture) token(t *testing.T) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(f.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{ShopperID: uuid.New()})
	require.NoError(t, err)
	return token
}

func TestHealthRoutesArePublic(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		f.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.Code, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestSuggestionsArePublic(t *testing.T) {
	f := newFixture(t)
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/search/suggestions?q=tr", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Trail Shoe")
}

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newFixture(t)
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCartWithToken(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t))

	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestCreateOrderReplaysIdempotentRequest(t *testing.T) {
	f := newFixture(t)
	token := f.token(t)
	body := `{"address_id":"` + uuid.NewString() + `","payment_method":"credit_card"}`

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "order-1")
		resp := httptest.NewRecorder()
		f.handler.ServeHTTP(resp, req)
		return resp
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := send()
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, f.checkout.placed)
}

func TestStripeWebhookSkipsBearerAuth(t *testing.T) {
	f := newFixture(t)
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`)))

	// No Authorization header: the signature check rejects it, not the auth middleware.
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "stripe signature missing")
}

func TestSquareWebhookUnmountedWithoutHandler(t *testing.T) {
	f := newFixture(t)
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

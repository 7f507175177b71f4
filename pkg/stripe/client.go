package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	// Safe because every mutating call carries an idempotency key.
	maxNetworkRetries = 2
)

// keyPrefixes lists the secret and restricted key prefixes each env accepts.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
	errWebhookSecret    = errors.New("stripe webhook secret must start with whsec_")
)

// Client carries the validated Stripe settings. The key and backend are
// installed globally on stripe-go because the resource packages read them.
type Client struct {
	environment   string
	webhookSecret string
}

// NewClient validates cfg and configures stripe-go once per process.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := strings.TrimSpace(strings.ToLower(cfg.Environment()))
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, errInvalidStripeEnv
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if !hasAnyPrefix(apiKey, prefixes) {
		return nil, fmt.Errorf("stripe environment %q requires a key starting with %s", env, strings.Join(prefixes, " or "))
	}
	secret := cfg.SigningSecret()
	if secret != "" && !strings.HasPrefix(secret, "whsec_") {
		return nil, errWebhookSecret
	}

	stripe.Key = apiKey
	stripe.SetAppInfo(&stripe.AppInfo{Name: "storefront-backend"})
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(maxNetworkRetries),
	}))

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env":       env,
			"webhooks_enabled": secret != "",
		}), "stripe client initialized")
	}
	return &Client{environment: env, webhookSecret: secret}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret is the webhook endpoint secret, empty when webhooks are off.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

package square

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client is a thin Square payments wrapper. Every call is logged with its
// latency and every failure comes back as a *pkgerrors.Error.
type Client struct {
	sdk         *sqclient.Client
	environment string
	locationID  string
	logg        *logger.Logger
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errors.New("square logger is required")
	}
	env := strings.ToLower(strings.TrimSpace(cfg.Environment()))
	if env == "" {
		env = sandboxEnv
	}
	baseURL, ok := baseURLs[env]
	if !ok {
		return nil, fmt.Errorf("square environment must be %q or %q, got %q", sandboxEnv, productionEnv, env)
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errors.New("square access token is required")
	}
	location := strings.TrimSpace(cfg.LocationID)
	if location == "" {
		return nil, errors.New("square location id is required")
	}

	c := &Client{
		sdk:         sqclient.NewClient(sqoption.WithBaseURL(baseURL), sqoption.WithToken(token)),
		environment: env,
		locationID:  location,
		logg:        logg,
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"square_env": env, "location_id": location}), "square client initialized")
	return c, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// LocationID is the seller location every payment is taken at.
func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

// idempotencyKey keeps a caller-supplied key so retries collapse on Square's
// side; otherwise it mints "<prefix>-<uuid>".
func idempotencyKey(prefix, provided string) string {
	if k := strings.TrimSpace(provided); k != "" {
		return k
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "sf"
	}
	return prefix + "-" + uuid.NewString()
}

// CreatePayment charges a tokenized source. LocationID defaults to the
// client's location.
func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	if strings.TrimSpace(params.LocationID) == "" {
		params.LocationID = c.locationID
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	req := params.toSquareRequest(idempotencyKey("payment.create", params.IdempotencyKey))
	fields := map[string]any{
		"location_id":  params.LocationID,
		"reference_id": params.ReferenceID,
		"amount_cents": params.AmountCents,
		"source_id":    params.SourceID,
	}
	return c.paymentCall(ctx, "create_payment", fields, func(ctx context.Context) (*sq.Payment, error) {
		resp, err := c.sdk.Payments.Create(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp.GetPayment(), nil
	})
}

// GetPayment re-reads a payment by id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	return c.paymentCall(ctx, "get_payment", map[string]any{"payment_id": paymentID}, func(ctx context.Context) (*sq.Payment, error) {
		resp, err := c.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
		if err != nil {
			return nil, err
		}
		return resp.GetPayment(), nil
	})
}

func (c *Client) paymentCall(ctx context.Context, op string, fields map[string]any, fn func(context.Context) (*sq.Payment, error)) (*sq.Payment, error) {
	fields["operation"] = op
	logCtx := c.logg.WithFields(ctx, fields)

	start := time.Now()
	payment, err := fn(ctx)
	elapsed := c.logg.WithField(logCtx, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		mapped := mapError(err, strings.ReplaceAll(op, "_", " "))
		c.logg.Error(elapsed, "square."+op+".failed", mapped)
		return nil, mapped
	}
	c.logg.Info(c.logg.WithFields(elapsed, map[string]any{
		"payment_id":     deref(payment.GetID()),
		"payment_status": deref(payment.GetStatus()),
	}), "square."+op)
	return payment, nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const (
	ProviderStripe = "stripe"
	orderIDMetaKey = "order_id"
)

// StripeGateway maps the gateway contract onto Stripe PaymentIntents.
type StripeGateway struct {
	logg *logger.Logger
}

// NewStripeGateway requires an initialized Stripe client so the API key is set.
func NewStripeGateway(client *pkgstripe.Client, logg *logger.Logger) (*StripeGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &StripeGateway{logg: logg}, nil
}

func (g *StripeGateway) Name() string { return ProviderStripe }

func (g *StripeGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.AddMetadata(orderIDMetaKey, req.OrderID.String())
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, g.mapError(ctx, err, "create payment intent", "")
	}
	return intentFromStripe(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return nil, g.mapError(ctx, err, "get payment intent", intentID)
	}
	return intentFromStripe(pi), nil
}

func (g *StripeGateway) ConfirmIntent(ctx context.Context, req ConfirmRequest) (*Intent, error) {
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(req.PaymentMethodToken),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	pi, err := paymentintent.Confirm(req.IntentID, params)
	if err != nil {
		return nil, g.mapError(ctx, err, "confirm payment intent", req.IntentID)
	}
	return intentFromStripe(pi), nil
}

func (g *StripeGateway) mapError(ctx context.Context, err error, op, intentID string) error {
	mapped := mapStripeError(err, op, intentID)
	if g.logg != nil && isGatewayFailure(mapped) {
		logCtx := g.logg.WithFields(ctx, map[string]any{
			"provider":          ProviderStripe,
			"operation":         op,
			"payment_intent_id": intentID,
		})
		g.logg.Error(logCtx, "stripe call failed", err)
	}
	return mapped
}

func mapStripeError(err error, op, intentID string) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return GatewayUnavailableError(err)
	}
	switch {
	case stripeErr.Type == stripe.ErrorTypeCard:
		return DeclinedError(intentID, stripeDeclineReason(stripeErr))
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests,
		stripeErr.HTTPStatusCode >= http.StatusInternalServerError,
		stripeErr.Type == stripe.ErrorTypeAPI:
		return GatewayUnavailableError(err)
	case stripeErr.Type == stripe.ErrorTypeIdempotency:
		return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, fmt.Sprintf("stripe %s rejected the idempotency key", op))
	case stripeErr.HTTPStatusCode == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment intent not found").
			WithDetails(map[string]any{"payment_intent_id": intentID})
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe rejected the api key")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("stripe %s failed", op)).
			WithDetails(map[string]any{"stripe_code": string(stripeErr.Code)})
	}
}

func stripeDeclineReason(stripeErr *stripe.Error) string {
	if msg := strings.TrimSpace(stripeErr.Msg); msg != "" {
		return msg
	}
	if stripeErr.DeclineCode != "" {
		return string(stripeErr.DeclineCode)
	}
	return string(stripeErr.Code)
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     strings.ToLower(string(pi.Currency)),
		OrderID:      pi.Metadata[orderIDMetaKey],
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		intent.Status = IntentSucceeded
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		intent.Status = IntentProcessing
	case stripe.PaymentIntentStatusRequiresAction:
		intent.Status = IntentRequiresAction
	case stripe.PaymentIntentStatusRequiresConfirmation:
		intent.Status = IntentRequiresConfirmation
	case stripe.PaymentIntentStatusCanceled:
		intent.Status = IntentCanceled
	default:
		intent.Status = IntentRequiresPaymentMethod
		if pi.LastPaymentError != nil {
			intent.Status = IntentFailed
			intent.DeclineReason = stripeDeclineReason(pi.LastPaymentError)
		}
	}
	return intent
}

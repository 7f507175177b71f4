package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	pkgsquare "github.com/angelmondragon/storefront-backend/pkg/square"
)

const (
	ProviderSquare = "square"
	// squarePendingPrefix marks intents that exist only until the shopper's
	// card token arrives; Square has no server-side intent object.
	squarePendingPrefix = "sqpi_"
)

type squarePayments interface {
	CreatePayment(ctx context.Context, params pkgsquare.PaymentCreateParams) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// SquareGateway maps the gateway contract onto the Square Payments API. The
// intent becomes a Square payment at confirmation, so its id changes then.
type SquareGateway struct {
	client squarePayments
}

func NewSquareGateway(client *pkgsquare.Client) (*SquareGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &SquareGateway{client: client}, nil
}

func (g *SquareGateway) Name() string { return ProviderSquare }

// CreateIntent derives a stable pending id from the idempotency key, so a
// repeated request maps onto the same intent.
func (g *SquareGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	return &Intent{
		ID:          squarePendingPrefix + uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String(),
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		OrderID:     req.OrderID.String(),
		Status:      IntentRequiresPaymentMethod,
	}, nil
}

func (g *SquareGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	if strings.HasPrefix(intentID, squarePendingPrefix) {
		return &Intent{ID: intentID, Status: IntentRequiresPaymentMethod}, nil
	}
	payment, err := g.client.GetPayment(ctx, intentID)
	if err != nil {
		return nil, err
	}
	return intentFromSquare(payment), nil
}

func (g *SquareGateway) ConfirmIntent(ctx context.Context, req ConfirmRequest) (*Intent, error) {
	if !strings.HasPrefix(req.IntentID, squarePendingPrefix) {
		return g.GetIntent(ctx, req.IntentID)
	}
	payment, err := g.client.CreatePayment(ctx, pkgsquare.PaymentCreateParams{
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
		SourceID:       req.PaymentMethodToken,
		IdempotencyKey: req.IdempotencyKey,
		ReferenceID:    req.OrderID.String(),
		Note:           req.IntentID,
	})
	if err != nil {
		return nil, err
	}
	return intentFromSquare(payment), nil
}

func intentFromSquare(payment *sq.Payment) *Intent {
	if payment == nil {
		return nil
	}
	intent := &Intent{
		ID:      derefString(payment.GetID()),
		OrderID: derefString(payment.ReferenceID),
	}
	if amount := payment.AmountMoney; amount != nil {
		if amount.Amount != nil {
			intent.AmountCents = *amount.Amount
		}
		if amount.Currency != nil {
			intent.Currency = strings.ToLower(string(*amount.Currency))
		}
	}
	switch strings.ToUpper(derefString(payment.GetStatus())) {
	case "COMPLETED":
		intent.Status = IntentSucceeded
	case "APPROVED", "PENDING":
		intent.Status = IntentProcessing
	case "CANCELED":
		intent.Status = IntentCanceled
	case "FAILED":
		intent.Status = IntentFailed
		intent.DeclineReason = "payment failed"
	default:
		intent.Status = IntentProcessing
	}
	return intent
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

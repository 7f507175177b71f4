package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const orderIDMetaKey = "order_id"

// Service turns payment intent events into order reconciliation.
type Service struct {
	reconciler webhooks.Reconciler
	logg       *logger.Logger
}

func NewService(reconciler webhooks.Reconciler, logg *logger.Logger) (*Service, error) {
	if reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	return &Service{reconciler: reconciler, logg: logg}, nil
}

// HandleEvent reconciles the order referenced by a payment intent event.
// Events for other objects, and intents created outside checkout, are ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event payload missing")
	}
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled,
		stripe.EventTypePaymentIntentProcessing:
	default:
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	rawOrderID := strings.TrimSpace(intent.Metadata[orderIDMetaKey])
	if rawOrderID == "" {
		s.debug(ctx, fmt.Sprintf("stripe intent %s has no order reference", intent.ID))
		return nil
	}
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order reference")
	}

	result, err := s.reconciler.Reconcile(ctx, orderID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.debug(ctx, fmt.Sprintf("stripe intent %s references unknown order %s", intent.ID, orderID))
			return nil
		}
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":   orderID.String(),
			"event_type": string(event.Type),
			"outcome":    string(result.Outcome),
		})
		s.logg.Info(logCtx, "stripe.webhook.reconciled")
	}
	return nil
}

func (s *Service) debug(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Debug(ctx, msg)
	}
}

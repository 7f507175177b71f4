package squarewebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/storefront-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	EventPaymentCreated = "payment.created"
	EventPaymentUpdated = "payment.updated"
)

// Event is the notification envelope Square posts for payment changes.
type Event struct {
	MerchantID string    `json:"merchant_id"`
	Type       string    `json:"type"`
	EventID    string    `json:"event_id"`
	CreatedAt  string    `json:"created_at"`
	Data       EventData `json:"data"`
}

type EventData struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Object EventObject `json:"object"`
}

type EventObject struct {
	Payment *sq.Payment `json:"payment,omitempty"`
}

// DeliveryID prefers the event id and falls back to the object id.
func (e *Event) DeliveryID() string {
	if id := strings.TrimSpace(e.EventID); id != "" {
		return id
	}
	return strings.TrimSpace(e.Data.ID)
}

// VerifySignature checks Square's base64 HMAC-SHA256 over the notification
// URL followed by the raw body.
func VerifySignature(signatureKey, notificationURL string, body []byte, header string) bool {
	if signatureKey == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(signatureKey))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}

// Service reconciles orders whose Square payment changed state.
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

func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event payload missing")
	}
	switch event.Type {
	case EventPaymentCreated, EventPaymentUpdated:
	default:
		return nil
	}
	payment := event.Data.Object.Payment
	if payment == nil || payment.ReferenceID == nil || strings.TrimSpace(*payment.ReferenceID) == "" {
		if s.logg != nil {
			s.logg.Debug(ctx, fmt.Sprintf("square event %s carries no order reference", event.DeliveryID()))
		}
		return nil
	}
	orderID, err := uuid.Parse(strings.TrimSpace(*payment.ReferenceID))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order reference")
	}

	result, err := s.reconciler.Reconcile(ctx, orderID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil
		}
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":   orderID.String(),
			"event_type": event.Type,
			"outcome":    string(result.Outcome),
		})
		s.logg.Info(logCtx, "square.webhook.reconciled")
	}
	return nil
}

// Package payments drives the intent, confirm and settle protocol against an
// external card gateway and keeps a per-order attempt ledger.
package payments

import (
	"context"

	"github.com/google/uuid"
)

// IntentStatus is the provider-neutral status of a gateway intent.
type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentFailed                IntentStatus = "failed"
	IntentCanceled              IntentStatus = "canceled"
)

// Open reports whether the shopper can still complete the intent.
func (s IntentStatus) Open() bool {
	switch s {
	case IntentRequiresPaymentMethod, IntentRequiresConfirmation, IntentRequiresAction:
		return true
	}
	return false
}

// Intent is what the gateway reports about one payment intent. ClientSecret
// is handed to the shopper's browser and never persisted.
type Intent struct {
	ID            string
	ClientSecret  string
	AmountCents   int64
	Currency      string
	OrderID       string
	Status        IntentStatus
	DeclineReason string
}

// CreateIntentRequest asks the gateway for a new intent.
type CreateIntentRequest struct {
	OrderID        uuid.UUID
	AmountCents    int64
	Currency       string
	IdempotencyKey string
}

// ConfirmRequest hands a tokenized payment method to the gateway.
type ConfirmRequest struct {
	IntentID           string
	PaymentMethodToken string
	OrderID            uuid.UUID
	AmountCents        int64
	Currency           string
	IdempotencyKey     string
}

// Gateway is the external card processor.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	ConfirmIntent(ctx context.Context, req ConfirmRequest) (*Intent, error)
}

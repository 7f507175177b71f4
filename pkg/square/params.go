package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Square rejects longer values on CreatePayment.
const (
	maxNoteLength      = 500
	maxReferenceLength = 40
)

// PaymentCreateParams charges a card nonce for one order.
type PaymentCreateParams struct {
	AmountCents    int64
	Currency       string
	LocationID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

func (p PaymentCreateParams) validate() error {
	switch {
	case p.AmountCents <= 0:
		return pkgerrors.NewReason(pkgerrors.CodeValidation, pkgerrors.ReasonInvalidAmount, "square payment amount must be positive")
	case strings.TrimSpace(p.SourceID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "square payment source is required")
	case strings.TrimSpace(p.LocationID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "square location is required")
	case len(strings.TrimSpace(p.ReferenceID)) > maxReferenceLength:
		return pkgerrors.New(pkgerrors.CodeValidation, "square reference id too long")
	}
	return nil
}

// toSquareRequest captures immediately; the order is only marked paid once
// the payment reads back COMPLETED.
func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	autocomplete := true
	amount := p.AmountCents
	currency := currencyCode(p.Currency)
	return &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		SourceID:       strings.TrimSpace(p.SourceID),
		LocationID:     optional(p.LocationID),
		Autocomplete:   &autocomplete,
		AmountMoney:    &sq.Money{Amount: &amount, Currency: &currency},
		Note:           optional(truncate(p.Note, maxNoteLength)),
		ReferenceID:    optional(p.ReferenceID),
	}
}

func currencyCode(code string) sq.Currency {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = "USD"
	}
	return sq.Currency(code)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	return value[:max]
}

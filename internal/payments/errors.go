package payments

import (
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// InvalidAmountError rejects non-positive or mismatched amounts.
func InvalidAmountError(amountCents, expectedCents int64) error {
	details := map[string]any{"amount_cents": amountCents}
	if expectedCents > 0 {
		details["expected_cents"] = expectedCents
	}
	return pkgerrors.NewReason(pkgerrors.CodeValidation, pkgerrors.ReasonInvalidAmount, "invalid payment amount").
		WithDetails(details)
}

// GatewayUnavailableError wraps transport failures, 5xx answers and an open breaker.
func GatewayUnavailableError(cause error) error {
	return pkgerrors.NewReason(pkgerrors.CodeGateway, pkgerrors.ReasonGatewayUnavailable, "payment gateway unavailable").
		WithCause(cause)
}

// SettlementPendingError means the gateway has not finished the payment yet.
func SettlementPendingError(intentID string, status IntentStatus) error {
	return pkgerrors.NewReason(pkgerrors.CodeGateway, pkgerrors.ReasonSettlementPending, "payment is still processing").
		WithDetails(map[string]any{"payment_intent_id": intentID, "status": status})
}

// DeclinedError carries the gateway's decline reason verbatim.
func DeclinedError(intentID, reason string) error {
	return pkgerrors.NewReason(pkgerrors.CodeConflict, pkgerrors.ReasonPaymentDeclined, "payment declined").
		WithDetails(map[string]any{"payment_intent_id": intentID, "decline_reason": reason})
}

// IntentMismatchError is returned when an intent does not belong to the order.
func IntentMismatchError(orderID uuid.UUID, intentID string) error {
	return pkgerrors.NewReason(pkgerrors.CodeConflict, pkgerrors.ReasonIntentMismatch, "payment intent does not match order").
		WithDetails(map[string]any{"order_id": orderID, "payment_intent_id": intentID})
}

// declineReasonOf extracts the decline reason from a mapped gateway error.
func declineReasonOf(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ""
	}
	if details, ok := typed.Details().(map[string]any); ok {
		if reason, ok := details["decline_reason"].(string); ok {
			return reason
		}
	}
	return typed.Message()
}

// isGatewayFailure reports whether err should count against the breaker and
// leave the attempt in the error state.
func isGatewayFailure(err error) bool {
	if err == nil {
		return false
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return true
	}
	return typed.Code() == pkgerrors.CodeGateway || typed.Code() == pkgerrors.CodeDependency || typed.Code() == pkgerrors.CodeInternal
}

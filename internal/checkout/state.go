package checkout

import (
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Stage is the position of a checkout in its state machine.
type Stage string

const (
	StageAwaitingAddress Stage = "awaiting_address"
	StageAwaitingPayment Stage = "awaiting_payment"
	StageCompleted       Stage = "completed"
	StageFailed          Stage = "failed"
)

// State is what the client renders for the current checkout step.
type State struct {
	Stage           Stage                        `json:"state"`
	FailureReason   string                       `json:"failure_reason,omitempty"`
	DeclineReason   string                       `json:"decline_reason,omitempty"`
	AddressRequired bool                         `json:"address_required,omitempty"`
	Addresses       []address.View               `json:"addresses,omitempty"`
	Cart            *cart.View                   `json:"cart,omitempty"`
	Order           *orders.OrderView            `json:"order,omitempty"`
	Intent          *payments.PaymentIntent      `json:"payment_intent,omitempty"`
	Confirmation    *payments.ConfirmationResult `json:"confirmation,omitempty"`
	Attempts        int                          `json:"payment_attempts,omitempty"`
}

// stateOf derives the stage from the order and its newest payment attempt.
// A decline keeps the order in awaiting_payment.
func stateOf(order *models.Order, latest *models.PaymentAttempt) *State {
	view := orders.ViewOf(*order)
	state := &State{Order: &view}
	if latest != nil {
		state.Attempts = latest.AttemptNumber
	}

	switch order.Status {
	case enums.OrderStatusPending:
		state.Stage = StageAwaitingPayment
		if latest != nil && latest.State == enums.PaymentAttemptDeclined && latest.DeclineReason != nil {
			state.DeclineReason = *latest.DeclineReason
		}
	case enums.OrderStatusCancelled, enums.OrderStatusExpired:
		state.Stage = StageFailed
		state.FailureReason = order.Status.String()
	default:
		state.Stage = StageCompleted
	}
	return state
}

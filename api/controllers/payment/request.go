package payment

import (
	"encoding/json"

	"github.com/google/uuid"
)

type createIntentRequest struct {
	Amount   json.Number `json:"amount" validate:"required"`
	Currency string      `json:"currency"`
	OrderID  uuid.UUID   `json:"order_id" validate:"required"`
}

type authorizeRequest struct {
	OrderID         uuid.UUID `json:"order_id" validate:"required"`
	PaymentIntentID string    `json:"payment_intent_id" validate:"required"`
	PaymentMethod   string    `json:"payment_method" validate:"required"`
}

type confirmRequest struct {
	PaymentIntentID string    `json:"payment_intent_id" validate:"required"`
	OrderID         uuid.UUID `json:"order_id" validate:"required"`
}

type intentResponse struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
	Attempt         int    `json:"attempt"`
}

// Package payloads holds the data section of every published domain event.
package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once stock has been reserved for a new order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	ShopperID     uuid.UUID           `json:"shopper_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int64               `json:"total_cents"`
	Currency      string              `json:"currency"`
	ItemCount     int                 `json:"item_count"`
}

// OrderPaidEvent is emitted when the gateway settlement has been verified.
type OrderPaidEvent struct {
	OrderID              uuid.UUID `json:"order_id"`
	OrderNumber          string    `json:"order_number"`
	ShopperID            uuid.UUID `json:"shopper_id"`
	PaymentTransactionID string    `json:"payment_transaction_id"`
	Provider             string    `json:"provider"`
	AmountCents          int64     `json:"amount_cents"`
	Currency             string    `json:"currency"`
	PaidAt               time.Time `json:"paid_at"`
}

// OrderConfirmedEvent is emitted for orders confirmed without a gateway step.
type OrderConfirmedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	ShopperID     uuid.UUID           `json:"shopper_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int64               `json:"total_cents"`
}

// OrderReleasedEvent is emitted when a pending order gives its stock back.
type OrderReleasedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	ShopperID   uuid.UUID         `json:"shopper_id"`
	Status      enums.OrderStatus `json:"status"`
	Reason      string            `json:"reason"`
	ReleasedAt  time.Time         `json:"released_at"`
}

// PaymentDeclinedEvent is emitted for every declined gateway attempt.
type PaymentDeclinedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	AttemptNumber int       `json:"attempt_number"`
	IntentID      string    `json:"intent_id"`
	Provider      string    `json:"provider"`
	DeclineReason string    `json:"decline_reason"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PaymentAttempt is one gateway intent tried against an order.
type PaymentAttempt struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_payment_attempts_order_attempt"`
	AttemptNumber  int                       `gorm:"column:attempt_number;not null;uniqueIndex:ux_payment_attempts_order_attempt"`
	Provider       string                    `gorm:"column:provider;not null"`
	IdempotencyKey string                    `gorm:"column:idempotency_key;not null"`
	IntentID       *string                   `gorm:"column:intent_id;index"`
	State          enums.PaymentAttemptState `gorm:"column:state;type:payment_attempt_state;not null"`
	AmountCents    int64                     `gorm:"column:amount_cents;not null"`
	Currency       string                    `gorm:"column:currency;not null"`
	DeclineReason  *string                   `gorm:"column:decline_reason"`
	LastError      *string                   `gorm:"column:last_error"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PaymentAttempt) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

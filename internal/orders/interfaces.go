package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines the persistence surface required by the order builder.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID, lock bool) (*models.Order, error)
	FindForShopper(ctx context.Context, shopperID, id uuid.UUID) (*models.Order, error)
	ListByShopper(ctx context.Context, shopperID uuid.UUID, page pagination.Params) ([]models.Order, int64, error)
	TransitionPending(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)
	FindAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// ReleaseReason says why a pending order gave its stock back.
type ReleaseReason string

const (
	ReleaseShopperCancelled ReleaseReason = "shopper_cancelled"
	ReleaseAbandoned        ReleaseReason = "abandoned"
	ReleasePaymentFailed    ReleaseReason = "payment_failed"
)

// Status maps the reason onto the terminal order status.
func (r ReleaseReason) Status() enums.OrderStatus {
	if r == ReleaseAbandoned {
		return enums.OrderStatusExpired
	}
	return enums.OrderStatusCancelled
}

package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// AttemptRepository persists the per-order payment attempt ledger.
type AttemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	if tx == nil {
		return r
	}
	return &AttemptRepository{db: tx}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

// Latest returns the highest-numbered attempt for the order.
func (r *AttemptRepository) Latest(ctx context.Context, orderID uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("attempt_number DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) FindByIntent(ctx context.Context, orderID uuid.UUID, intentID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND intent_id = ?", orderID, intentID).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("attempt_number ASC").
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ReconcilableOrderIDs lists pending, unpaid orders whose latest gateway
// activity is older than cutoff and may have settled out of band.
func (r *AttemptRepository) ReconcilableOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	pending := r.db.Model(&models.Order{}).
		Select("id").
		Where("status = ? AND payment_status = ?", enums.OrderStatusPending, enums.PaymentStatusUnpaid)

	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("intent_id IS NOT NULL").
		Where("state IN ?", []enums.PaymentAttemptState{
			enums.PaymentAttemptIntentCreated,
			enums.PaymentAttemptConfirmed,
			enums.PaymentAttemptError,
		}).
		Where("updated_at < ?", cutoff).
		Where("order_id IN (?)", pending).
		Limit(limit).
		Distinct().
		Pluck("order_id", &ids).Error
	return ids, err
}

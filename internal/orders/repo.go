package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, lock bool) (*models.Order, error) {
	query := r.db.WithContext(ctx)
	if lock {
		query = db.ForUpdate(query)
	}
	var order models.Order
	if err := query.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Order("created_at ASC, id ASC").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindForShopper(ctx context.Context, shopperID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ? AND shopper_id = ?", id, shopperID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByShopper(ctx context.Context, shopperID uuid.UUID, page pagination.Params) ([]models.Order, int64, error) {
	page = page.Normalize()
	base := r.db.WithContext(ctx).Model(&models.Order{}).Where("shopper_id = ?", shopperID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("shopper_id = ?", shopperID).
		Order("created_at DESC, id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// TransitionPending applies updates only while the order is still
// pending and unpaid. It reports whether the row changed.
func (r *repository) TransitionPending(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment_status = ?", id, enums.OrderStatusPending, enums.PaymentStatusUnpaid).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_status = ? AND created_at < ?", enums.OrderStatusPending, enums.PaymentStatusUnpaid, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

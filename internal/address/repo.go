package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists the shopper address book.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListByShopper returns the default address first, then newest first.
func (r *Repository) ListByShopper(ctx context.Context, shopperID uuid.UUID) ([]models.Address, error) {
	var addresses []models.Address
	err := r.db.WithContext(ctx).
		Where("shopper_id = ?", shopperID).
		Order("is_default DESC, created_at DESC, id ASC").
		Find(&addresses).Error
	return addresses, err
}

func (r *Repository) FindForShopper(ctx context.Context, shopperID, addressID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND shopper_id = ?", addressID, shopperID).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

func (r *Repository) CountByShopper(ctx context.Context, shopperID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Address{}).Where("shopper_id = ?", shopperID).Count(&count).Error
	return count, err
}

// ClearDefault unsets the default flag on every address of the shopper.
func (r *Repository) ClearDefault(ctx context.Context, shopperID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("shopper_id = ? AND is_default = ?", shopperID, true).
		Update("is_default", false).Error
}

func (r *Repository) Create(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

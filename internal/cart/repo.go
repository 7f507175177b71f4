package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists carts and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided DB handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByShopper loads the shopper's cart with its lines oldest first.
func (r *Repository) FindByShopper(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Items.Variant.Product").
		Where("shopper_id = ?", shopperID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindOrCreate returns the shopper's cart, creating an empty one when absent.
func (r *Repository) FindOrCreate(ctx context.Context, shopperID uuid.UUID) (*models.Cart, error) {
	cart, err := r.FindByShopper(ctx, shopperID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	created := models.Cart{ShopperID: shopperID}
	if err := r.db.WithContext(ctx).Create(&created).Error; err != nil {
		if db.IsUniqueViolation(err, "shopper") {
			return r.FindByShopper(ctx, shopperID)
		}
		return nil, err
	}
	return &created, nil
}

// FindItem returns a line of the cart.
func (r *Repository) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemByVariant returns the cart line holding variantID, if any.
func (r *Repository) FindItemByVariant(ctx context.Context, cartID, variantID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_variant_id = ?", cartID, variantID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a new line.
func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItem rewrites quantity and the price snapshot of a line.
func (r *Repository) UpdateItem(ctx context.Context, itemID uuid.UUID, qty int, unitPriceCents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"quantity":         qty,
			"unit_price_cents": unitPriceCents,
		}).Error
}

// DeleteItem removes a line; deleting an absent line is not an error.
func (r *Repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{}).Error
}

// DeleteAll empties the cart.
func (r *Repository) DeleteAll(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

// PruneSettled drops lines consumed by orders that left pending. Released
// orders hand their lines back, so whatever is still tied to a non-pending
// order was paid or confirmed.
func (r *Repository) PruneSettled(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND order_id IS NOT NULL", cartID).
		Where("order_id IN (?)", r.db.Model(&models.Order{}).Select("id").Where("status <> ?", enums.OrderStatusPending)).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// ConsumedBy returns the id of the pending order holding the cart, if any.
func (r *Repository) ConsumedBy(ctx context.Context, cartID uuid.UUID) (*uuid.UUID, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Select("order_id").
		Where("cart_id = ? AND order_id IS NOT NULL", cartID).
		Limit(1).
		Find(&items).Error
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0].OrderID, nil
}

// Unconsumed returns the lines available for a new order, with catalog data.
func (r *Repository) Unconsumed(ctx context.Context, shopperID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Variant.Product").
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.shopper_id = ? AND cart_items.order_id IS NULL", shopperID).
		Order("cart_items.created_at ASC, cart_items.id ASC").
		Find(&items).Error
	return items, err
}

// Consume ties the given unconsumed lines to orderID. It returns how many
// lines it claimed so callers can detect a concurrent claim.
func (r *Repository) Consume(ctx context.Context, itemIDs []uuid.UUID, orderID uuid.UUID) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id IN ? AND order_id IS NULL", itemIDs).
		Update("order_id", orderID)
	return res.RowsAffected, res.Error
}

// Unconsume hands lines held by orderID back to the cart.
func (r *Repository) Unconsume(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("order_id = ?", orderID).
		Update("order_id", nil)
	return res.RowsAffected, res.Error
}

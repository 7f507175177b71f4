package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart is the server-authoritative basket of a single shopper.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ShopperID uuid.UUID  `gorm:"column:shopper_id;type:uuid;not null;uniqueIndex"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CartItem is one variant line. OrderID is set while a pending order holds it.
type CartItem struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID           uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_variant"`
	ProductVariantID uuid.UUID       `gorm:"column:product_variant_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_variant"`
	Quantity         int             `gorm:"column:quantity;not null"`
	UnitPriceCents   int64           `gorm:"column:unit_price_cents;not null"`
	OrderID          *uuid.UUID      `gorm:"column:order_id;type:uuid;index"`
	Variant          *ProductVariant `gorm:"foreignKey:ProductVariantID"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog listing; variants carry the purchasable stock.
type Product struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name           string           `gorm:"column:name;not null"`
	Description    *string          `gorm:"column:description"`
	BasePriceCents int64            `gorm:"column:base_price_cents;not null"`
	IsActive       bool             `gorm:"column:is_active;not null"`
	Variants       []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductVariant is a size/color combination with its own stock counter.
type ProductVariant struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID            uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	SKU                  string    `gorm:"column:sku;not null;uniqueIndex"`
	Size                 *string   `gorm:"column:size"`
	Color                *string   `gorm:"column:color"`
	ColorHex             *string   `gorm:"column:color_hex"`
	StockQuantity        int       `gorm:"column:stock_quantity;not null"`
	PriceAdjustmentCents int64     `gorm:"column:price_adjustment_cents;not null"`
	IsActive             bool      `gorm:"column:is_active;not null"`
	Product              *Product  `gorm:"foreignKey:ProductID"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// UnitPriceCents is the live price: product base plus the variant adjustment.
func (v ProductVariant) UnitPriceCents() int64 {
	if v.Product == nil {
		return v.PriceAdjustmentCents
	}
	return v.Product.BasePriceCents + v.PriceAdjustmentCents
}

// Purchasable reports whether both the variant and its product are active.
func (v ProductVariant) Purchasable() bool {
	return v.IsActive && (v.Product == nil || v.Product.IsActive)
}

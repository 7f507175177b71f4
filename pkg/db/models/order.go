package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is the immutable snapshot of a cart at checkout time.
type Order struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber          string              `gorm:"column:order_number;not null;uniqueIndex"`
	ShopperID            uuid.UUID           `gorm:"column:shopper_id;type:uuid;not null;index"`
	AddressID            *uuid.UUID          `gorm:"column:address_id;type:uuid"`
	Status               enums.OrderStatus   `gorm:"column:status;type:order_status;not null"`
	PaymentMethod        enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentStatus        enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null"`
	Currency             string              `gorm:"column:currency;not null"`
	SubtotalCents        int64               `gorm:"column:subtotal_cents;not null"`
	ShippingCostCents    int64               `gorm:"column:shipping_cost_cents;not null"`
	TotalCents           int64               `gorm:"column:total_cents;not null"`
	ShippingFullName     string              `gorm:"column:shipping_full_name;not null"`
	ShippingPhone        string              `gorm:"column:shipping_phone;not null"`
	ShippingLine1        string              `gorm:"column:shipping_line1;not null"`
	ShippingLine2        string              `gorm:"column:shipping_line2;not null"`
	ShippingCity         string              `gorm:"column:shipping_city;not null"`
	ShippingState        string              `gorm:"column:shipping_state;not null"`
	ShippingPostalCode   string              `gorm:"column:shipping_postal_code;not null"`
	ShippingCountry      string              `gorm:"column:shipping_country;not null"`
	Notes                *string             `gorm:"column:notes"`
	PaymentTransactionID *string             `gorm:"column:payment_transaction_id"`
	PaidAt               *time.Time          `gorm:"column:paid_at"`
	ReleasedAt           *time.Time          `gorm:"column:released_at"`
	Items                []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem freezes product data and price for one ordered variant.
type OrderItem struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductVariantID uuid.UUID `gorm:"column:product_variant_id;type:uuid;not null"`
	ProductName      string    `gorm:"column:product_name;not null"`
	ProductSKU       string    `gorm:"column:product_sku;not null"`
	Size             *string   `gorm:"column:size"`
	Color            *string   `gorm:"column:color"`
	Quantity         int       `gorm:"column:quantity;not null"`
	UnitPriceCents   int64     `gorm:"column:unit_price_cents;not null"`
	LineTotalCents   int64     `gorm:"column:line_total_cents;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Address is a saved shipping destination owned by a shopper.
type Address struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShopperID  uuid.UUID `gorm:"column:shopper_id;type:uuid;not null;index"`
	Title      string    `gorm:"column:title;not null"`
	FullName   string    `gorm:"column:full_name;not null"`
	Phone      string    `gorm:"column:phone;not null"`
	Line1      string    `gorm:"column:line1;not null"`
	Line2      string    `gorm:"column:line2;not null"`
	City       string    `gorm:"column:city;not null"`
	State      string    `gorm:"column:state;not null"`
	PostalCode string    `gorm:"column:postal_code;not null"`
	Country    string    `gorm:"column:country;not null"`
	IsDefault  bool      `gorm:"column:is_default;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Address) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

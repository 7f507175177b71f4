package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// VariantSpec describes a catalog row to seed.
type VariantSpec struct {
	ProductName     string
	BasePriceCents  int64
	AdjustmentCents int64
	Stock           int
	Size            string
	Color           string
	Inactive        bool
}

// SeedVariant inserts a product with a single variant and returns the variant.
func SeedVariant(t testing.TB, conn *gorm.DB, spec VariantSpec) models.ProductVariant {
	t.Helper()
	if spec.ProductName == "" {
		spec.ProductName = "Classic Tee"
	}
	product := models.Product{
		Name:           spec.ProductName,
		BasePriceCents: spec.BasePriceCents,
		IsActive:       true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.ProductVariant{
		ProductID:            product.ID,
		SKU:                  "SKU-" + uuid.NewString()[:8],
		StockQuantity:        spec.Stock,
		PriceAdjustmentCents: spec.AdjustmentCents,
		IsActive:             !spec.Inactive,
	}
	if spec.Size != "" {
		size := spec.Size
		variant.Size = &size
	}
	if spec.Color != "" {
		color := spec.Color
		variant.Color = &color
	}
	if err := conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	variant.Product = &product
	return variant
}

// SeedAddress inserts a complete address for shopper.
func SeedAddress(t testing.TB, conn *gorm.DB, shopperID uuid.UUID) models.Address {
	t.Helper()
	address := models.Address{
		ShopperID:  shopperID,
		Title:      "Home",
		FullName:   "Sam Rivera",
		Phone:      "+1 555 0100",
		Line1:      "12 Market St",
		City:       "Portland",
		State:      "OR",
		PostalCode: "97201",
		Country:    "US",
		IsDefault:  true,
	}
	if err := conn.Create(&address).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return address
}

// Stock reads the live stock counter of a variant.
func Stock(t testing.TB, conn *gorm.DB, variantID uuid.UUID) int {
	t.Helper()
	var variant models.ProductVariant
	if err := conn.Select("stock_quantity").Where("id = ?", variantID).First(&variant).Error; err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return variant.StockQuantity
}

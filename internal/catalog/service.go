package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// VariantNotFoundError is returned for unknown or inactive variants.
func VariantNotFoundError(id uuid.UUID) error {
	return pkgerrors.NewReason(pkgerrors.CodeNotFound, pkgerrors.ReasonVariantNotFound, "product variant not found").
		WithDetails(map[string]any{"product_variant_id": id})
}

// Purchasable loads a variant that can currently be sold. Callers inside a
// transaction pass a repository bound to it.
func Purchasable(ctx context.Context, repo *Repository, id uuid.UUID) (*models.ProductVariant, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_variant_id is required")
	}
	variant, err := repo.FindVariant(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, VariantNotFoundError(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product variant")
	}
	if !variant.Purchasable() {
		return nil, VariantNotFoundError(id)
	}
	return variant, nil
}

// VariantView is the catalog data the cart renders next to each line.
type VariantView struct {
	ID       uuid.UUID `json:"id"`
	Product  string    `json:"product_name"`
	SKU      string    `json:"sku"`
	Size     *string   `json:"size,omitempty"`
	Color    *string   `json:"color,omitempty"`
	ColorHex *string   `json:"color_hex,omitempty"`
	Stock    int       `json:"stock_quantity"`
	Active   bool      `json:"is_active"`
}

// ViewOf flattens a variant and its product.
func ViewOf(v models.ProductVariant) VariantView {
	view := VariantView{
		ID:       v.ID,
		SKU:      v.SKU,
		Size:     v.Size,
		Color:    v.Color,
		ColorHex: v.ColorHex,
		Stock:    v.StockQuantity,
		Active:   v.Purchasable(),
	}
	if v.Product != nil {
		view.Product = v.Product.Name
	}
	return view
}

// Describe renders a variant label such as "Tee (M / Black)".
func Describe(v models.ProductVariant) string {
	name := ""
	if v.Product != nil {
		name = v.Product.Name
	}
	switch {
	case v.Size != nil && v.Color != nil:
		return fmt.Sprintf("%s (%s / %s)", name, *v.Size, *v.Color)
	case v.Size != nil:
		return fmt.Sprintf("%s (%s)", name, *v.Size)
	case v.Color != nil:
		return fmt.Sprintf("%s (%s)", name, *v.Color)
	default:
		return name
	}
}

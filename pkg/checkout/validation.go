package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// MaxLineQuantity bounds a single cart or order line.
const MaxLineQuantity = 999

// StockCheck describes one requested quantity against the live stock counter.
type StockCheck struct {
	VariantID uuid.UUID
	SKU       string
	Requested int
	Available int
}

// OutOfStockDetail is returned to callers when a line exceeds stock.
type OutOfStockDetail struct {
	VariantID uuid.UUID `json:"product_variant_id"`
	SKU       string    `json:"sku,omitempty"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// ValidateQuantity rejects quantities outside 1..MaxLineQuantity.
func ValidateQuantity(qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").WithDetails(map[string]any{
			"quantity": qty,
		})
	}
	if qty > MaxLineQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be at most %d", MaxLineQuantity)).WithDetails(map[string]any{
			"quantity": qty,
		})
	}
	return nil
}

// ValidateStock fails with the first line whose request exceeds availability.
func ValidateStock(items []StockCheck) error {
	for _, item := range items {
		if item.Requested > item.Available {
			return OutOfStockError(item)
		}
	}
	return nil
}

// OutOfStockError names the variant, the requested and the available quantity.
func OutOfStockError(item StockCheck) error {
	available := item.Available
	if available < 0 {
		available = 0
	}
	return pkgerrors.NewReason(
		pkgerrors.CodeConflict,
		pkgerrors.ReasonOutOfStock,
		fmt.Sprintf("only %d left in stock", available),
	).WithDetails(OutOfStockDetail{
		VariantID: item.VariantID,
		SKU:       item.SKU,
		Requested: item.Requested,
		Available: available,
	})
}

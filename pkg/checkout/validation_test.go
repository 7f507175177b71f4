package checkout

import (
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestValidateStock_NoViolations(t *testing.T) {
	items := []StockCheck{
		{VariantID: uuid.New(), Requested: 2, Available: 2},
		{VariantID: uuid.New(), Requested: 1, Available: 10},
	}
	if err := ValidateStock(items); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStock_ReportsFirstViolation(t *testing.T) {
	short := uuid.New()
	items := []StockCheck{
		{VariantID: uuid.New(), Requested: 1, Available: 3},
		{VariantID: short, SKU: "TEE-M-RED", Requested: 4, Available: 1},
	}

	err := ValidateStock(items)
	if err == nil {
		t.Fatal("expected out of stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict || typed.Reason() != pkgerrors.ReasonOutOfStock {
		t.Fatalf("unexpected error %v", err)
	}
	detail, ok := typed.Details().(OutOfStockDetail)
	if !ok {
		t.Fatalf("unexpected details type %T", typed.Details())
	}
	if detail.VariantID != short || detail.Requested != 4 || detail.Available != 1 {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestOutOfStockClampsNegativeAvailability(t *testing.T) {
	err := OutOfStockError(StockCheck{VariantID: uuid.New(), Requested: 1, Available: -3})
	detail := pkgerrors.As(err).Details().(OutOfStockDetail)
	if detail.Available != 0 {
		t.Fatalf("expected clamp to 0, got %d", detail.Available)
	}
}

func TestValidateQuantity(t *testing.T) {
	for _, qty := range []int{0, -1, MaxLineQuantity + 1} {
		err := ValidateQuantity(qty)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("qty %d: expected validation error, got %v", qty, err)
		}
	}
	if err := ValidateQuantity(1); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

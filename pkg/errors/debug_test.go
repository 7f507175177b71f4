package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpTypedError(t *testing.T) {
	err := fmt.Errorf("place order: %w", NewReason(CodeConflict, ReasonOutOfStock, "insufficient stock"))
	d := Dump(err)
	if d.Code != CodeConflict || d.Reason != ReasonOutOfStock {
		t.Fatalf("unexpected code/reason %s/%s", d.Code, d.Reason)
	}
	if d.Retryable {
		t.Fatalf("conflict should not be retryable")
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", d.Chain)
	}
}

func TestDumpUntypedDefaultsToInternal(t *testing.T) {
	d := Dump(stdErrors.New("boom"))
	if d.Code != CodeInternal || !d.Retryable {
		t.Fatalf("expected retryable internal, got %+v", d)
	}
	if empty := Dump(nil); empty.TopMessage != "" || empty.Chain != nil || empty.Code != "" {
		t.Fatalf("expected empty dump for nil")
	}
}

func TestDumpPostgresErrors(t *testing.T) {
	pgx := Wrap(CodeDependency, &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_order_number", TableName: "orders"}, "insert order")
	d := Dump(pgx)
	if d.PGCode != "23505" || d.PGConstraint != "ux_orders_order_number" || d.PGTable != "orders" {
		t.Fatalf("unexpected pgx dump %+v", d)
	}

	pqErr := fmt.Errorf("exec: %w", &pq.Error{Code: "23514", Constraint: "product_variants_stock_quantity_check"})
	d = Dump(pqErr)
	if d.PGCode != "23514" || d.PGConstraint != "product_variants_stock_quantity_check" {
		t.Fatalf("unexpected pq dump %+v", d)
	}
}

func TestDumpCapsChain(t *testing.T) {
	err := stdErrors.New("root")
	for i := 0; i < 20; i++ {
		err = fmt.Errorf("layer %d: %w", i, err)
	}
	d := Dump(err)
	if len(d.Chain) != maxChainDepth+1 || d.Chain[maxChainDepth] != "..." {
		t.Fatalf("expected capped chain, got %d entries", len(d.Chain))
	}
}

package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCatalogMigrationGuardsStock(t *testing.T) {
	assertContains(t, readMigration(t, "create_catalog_tables"), []string{
		"CREATE TABLE IF NOT EXISTS products",
		"CREATE TABLE IF NOT EXISTS product_variants",
		"CHECK (stock_quantity >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_product_variants_sku",
		"gin_trgm_ops",
		"DROP TABLE IF EXISTS product_variants",
	})
}

func TestCartMigrationHasOneLinePerVariant(t *testing.T) {
	assertContains(t, readMigration(t, "create_carts"), []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_carts_shopper ON carts (shopper_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_cart_items_cart_variant ON cart_items (cart_id, product_variant_id)",
		"CHECK (quantity >= 1)",
		"order_id uuid",
	})
}

func TestOrdersMigrationEnforcesTotals(t *testing.T) {
	assertContains(t, readMigration(t, "create_orders"), []string{
		"CHECK (total_cents = subtotal_cents + shipping_cost_cents)",
		"CHECK (line_total_cents = unit_price_cents * quantity)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_order_number",
		"DROP TABLE IF EXISTS orders",
	})
}

func TestPaymentAttemptsMigrationIsPerOrder(t *testing.T) {
	assertContains(t, readMigration(t, "create_payment_attempts"), []string{
		"ux_payment_attempts_order_attempt ON payment_attempts (order_id, attempt_number)",
		"state payment_attempt_state NOT NULL",
	})
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate dir: %v", err)
	}
}

func TestEmbeddedMatchesDisk(t *testing.T) {
	embedded, err := fs.Glob(migrate.Embedded, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) == 0 || len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
}

func TestEmbeddedValidates(t *testing.T) {
	if err := migrate.ValidateEmbedded(); err != nil {
		t.Fatalf("validate embedded: %v", err)
	}
}

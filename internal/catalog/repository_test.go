package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestDecrementStockGuardsAvailability(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 2500, Stock: 3})
	ctx := context.Background()

	ok, err := repo.DecrementStock(ctx, variant.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DecrementStock(ctx, variant.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "second decrement exceeds remaining stock")
	assert.Equal(t, 1, dbtest.Stock(t, conn, variant.ID))

	require.NoError(t, repo.IncrementStock(ctx, variant.ID, 2))
	assert.Equal(t, 3, dbtest.Stock(t, conn, variant.ID))
}

func TestDecrementStockSkipsInactiveVariant(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 2500, Stock: 5, Inactive: true})

	ok, err := repo.DecrementStock(context.Background(), variant.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 5, dbtest.Stock(t, conn, variant.ID))
}

func TestStockOfUnknownVariant(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	stock, err := repo.StockOf(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, -1, stock)
}

func TestPurchasableResolvesPriceAndRejectsInactive(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	active := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 2000, AdjustmentCents: 250, Stock: 4, Size: "M", Color: "Black"})
	inactive := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 2000, Stock: 4, Inactive: true})

	got, err := Purchasable(ctx, repo, active.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2250), got.UnitPriceCents())
	assert.Equal(t, "Classic Tee (M / Black)", Describe(*got))

	_, err = Purchasable(ctx, repo, inactive.ID)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonVariantNotFound))

	_, err = Purchasable(ctx, repo, uuid.New())
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonVariantNotFound))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSearchProductsOrdersPrefixFirstAndEscapesWildcards(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	dbtest.SeedVariant(t, conn, dbtest.VariantSpec{ProductName: "Linen Shirt", BasePriceCents: 4000, Stock: 1})
	dbtest.SeedVariant(t, conn, dbtest.VariantSpec{ProductName: "Shirt Dress", BasePriceCents: 5000, Stock: 1})
	dbtest.SeedVariant(t, conn, dbtest.VariantSpec{ProductName: "Socks", BasePriceCents: 900, Stock: 1})

	products, err := repo.SearchProducts(context.Background(), "shirt", 10)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Shirt Dress", products[0].Name)
	assert.Equal(t, "Linen Shirt", products[1].Name)

	products, err = repo.SearchProducts(context.Background(), "%", 10)
	require.NoError(t, err)
	assert.Empty(t, products)
}

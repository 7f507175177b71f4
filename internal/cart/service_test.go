package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/locks"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), catalog.NewRepository(conn), db.FromGorm(conn), locks.NewLocalLocker(time.Second), nil)
	require.NoError(t, err)
	return svc, conn
}

func TestGetCreatesEmptyCart(t *testing.T) {
	svc, _ := newTestService(t)
	shopper := uuid.New()

	first, err := svc.Get(context.Background(), shopper)
	require.NoError(t, err)
	assert.Empty(t, first.Items)
	assert.Equal(t, "0.00", first.Subtotal.Display)

	second, err := svc.Get(context.Background(), shopper)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestAddMergesLinesAndSnapshotsPrice(t *testing.T) {
	svc, conn := newTestService(t)
	variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 2000, AdjustmentCents: 500, Stock: 5})
	shopper := uuid.New()
	ctx := context.Background()

	_, err := svc.Add(ctx, shopper, variant.ID, 2)
	require.NoError(t, err)
	view, err := svc.Add(ctx, shopper, variant.ID, 1)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, int64(2500), view.Items[0].UnitPrice.Cents)
	assert.Equal(t, 3, view.ItemCount)
	assert.Equal(t, int64(7500), view.Subtotal.Cents)
	assert.Equal(t, "75.00", view.Subtotal.Display)
}

func TestAddRejectsMergedQuantityAboveStock(t *testing.T) {
	svc, conn := newTestService(t)
	variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 1000, Stock: 3})
	shopper := uuid.New()
	ctx := context.Background()

	_, err := svc.Add(ctx, shopper, variant.ID, 2)
	require.NoError(t, err)

	_, err = svc.Add(ctx, shopper, variant.ID, 2)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOutOfStock))
	detail, ok := pkgerrors.As(err).Details().(checkout.OutOfStockDetail)
	require.True(t, ok)
	assert.Equal(t, 4, detail.Requested)
	assert.Equal(t, 3, detail.Available)

	view, err := svc.Get(ctx, shopper)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Items[0].Quantity)
}

func TestAddUnknownOrInactiveVariant(t *testing.T) {
	svc, conn := newTestService(t)
	inactive := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 1000, Stock: 3, Inactive: true})
	shopper := uuid.New()

	_, err := svc.Add(context.Background(), shopper, uuid.New(), 1)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonVariantNotFound))

	_, err = svc.Add(context.Background(), shopper, inactive.ID, 1)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonVariantNotFound))
}

func TestUpdateQuantityRechecksStock(t *testing.T) {
	svc, conn := newTestService(t)
	variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 1000, Stock: 4})
	shopper := uuid.New()
	ctx := context.Background()

	view, err := svc.Add(ctx, shopper, variant.ID, 1)
	require.NoError(t, err)
	itemID := view.Items[0].ID

	view, err = svc.UpdateQuantity(ctx, shopper, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Items[0].Quantity)

	require.NoError(t, conn.Model(&models.ProductVariant{}).Where("id = ?", variant.ID).Update("stock_quantity", 2).Error)
	_, err = svc.UpdateQuantity(ctx, shopper, itemID, 3)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOutOfStock))

	_, err = svc.UpdateQuantity(ctx, shopper, itemID, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateQuantity(ctx, shopper, uuid.New(), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRemoveIsIdempotent(t *testing.T) {
	svc, conn := newTestService(t)
	variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 1000, Stock: 4})
	shopper := uuid.New()
	ctx := context.Background()

	view, err := svc.Add(ctx, shopper, variant.ID, 2)
	require.NoError(t, err)
	itemID := view.Items[0].ID

	once, err := svc.Remove(ctx, shopper, itemID)
	require.NoError(t, err)
	twice, err := svc.Remove(ctx, shopper, itemID)
	require.NoError(t, err)

	assert.Empty(t, once.Items)
	assert.Equal(t, once.Items, twice.Items)
	assert.Equal(t, once.Subtotal, twice.Subtotal)
}

func TestConsumedLinesLockCart(t *testing.T) {
	svc, conn := newTestService(t)
	variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 1000, Stock: 4})
	other := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 1000, Stock: 4})
	shopper := uuid.New()
	ctx := context.Background()

	view, err := svc.Add(ctx, shopper, variant.ID, 1)
	require.NoError(t, err)

	order := models.Order{
		OrderNumber:   "ORD-1",
		ShopperID:     shopper,
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodCreditCard,
		PaymentStatus: enums.PaymentStatusUnpaid,
		Currency:      "usd",
	}
	require.NoError(t, conn.Create(&order).Error)
	claimed, err := NewRepository(conn).Consume(ctx, []uuid.UUID{view.Items[0].ID}, order.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), claimed)

	_, err = svc.Add(ctx, shopper, other.ID, 1)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonCartLocked))
	_, err = svc.Remove(ctx, shopper, view.Items[0].ID)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonCartLocked))

	locked, err := svc.Get(ctx, shopper)
	require.NoError(t, err)
	assert.True(t, locked.Locked)
	require.NotNil(t, locked.OrderID)
	assert.Equal(t, order.ID, *locked.OrderID)

	// once the order settles its lines drop out on the next mutation
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", enums.OrderStatusConfirmed).Error)
	after, err := svc.Add(ctx, shopper, other.ID, 1)
	require.NoError(t, err)
	require.Len(t, after.Items, 1)
	assert.Equal(t, other.ID, after.Items[0].ProductVariantID)
}

func TestConcurrentAddsNeverExceedStock(t *testing.T) {
	svc, conn := newTestService(t)
	variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 1000, Stock: 5})
	shopper := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Add(context.Background(), shopper, variant.ID, 1)
		}()
	}
	wg.Wait()

	view, err := svc.Get(context.Background(), shopper)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
}

func TestClearEmptiesCart(t *testing.T) {
	svc, conn := newTestService(t)
	variant := dbtest.SeedVariant(t, conn, dbtest.VariantSpec{BasePriceCents: 1000, Stock: 5})
	shopper := uuid.New()
	ctx := context.Background()

	_, err := svc.Add(ctx, shopper, variant.ID, 2)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, shopper))

	view, err := svc.Get(ctx, shopper)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.ItemCount)
}

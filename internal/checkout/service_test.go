package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/payments/gatewaytest"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/locks"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type harness struct {
	conn     *gorm.DB
	gateway  *gatewaytest.Gateway
	carts    cart.Service
	checkout Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.FromGorm(conn)
	locker := locks.NewLocalLocker(2 * time.Second)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)

	carts, err := cart.NewService(cart.NewRepository(conn), catalog.NewRepository(conn), client, locker, nil)
	require.NoError(t, err)
	addresses, err := address.NewService(address.NewRepository(conn), client)
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(conn),
		Carts:     cart.NewRepository(conn),
		Catalog:   catalog.NewRepository(conn),
		Addresses: address.NewRepository(conn),
		Tx:        client,
		Locker:    locker,
		Outbox:    emitter,
	})
	require.NoError(t, err)
	gateway := gatewaytest.New()
	paySvc, err := payments.NewService(payments.ServiceParams{
		Attempts: payments.NewAttemptRepository(conn),
		Orders:   orderSvc,
		Tx:       client,
		Gateway:  gateway,
		Outbox:   emitter,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Carts:     carts,
		Addresses: addresses,
		Orders:    orderSvc,
		Payments:  paySvc,
		Locker:    locker,
	})
	require.NoError(t, err)
	return &harness{conn: conn, gateway: gateway, carts: carts, checkout: svc}
}

type shopperFixture struct {
	id      uuid.UUID
	address models.Address
	variant models.ProductVariant
}

// seedCart puts qty units of a 50.00 variant with the given stock in a new
// shopper's cart.
func (h *harness) seedCart(t *testing.T, stock, qty int) shopperFixture {
	t.Helper()
	shopper := uuid.New()
	variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{BasePriceCents: 5000, Stock: stock})
	addr := dbtest.SeedAddress(t, h.conn, shopper)
	_, err := h.carts.Add(context.Background(), shopper, variant.ID, qty)
	require.NoError(t, err)
	return shopperFixture{id: shopper, address: addr, variant: variant}
}

func (h *harness) cartCount(t *testing.T, shopper uuid.UUID) int {
	t.Helper()
	view, err := h.carts.Get(context.Background(), shopper)
	require.NoError(t, err)
	return view.ItemCount
}

func (h *harness) place(t *testing.T, f shopperFixture, method enums.PaymentMethod) *State {
	t.Helper()
	state, err := h.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		ShopperID:     f.id,
		AddressID:     f.address.ID,
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return state
}

func TestBeginRequiresItemsAndReportsAddresses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.checkout.Begin(ctx, uuid.New())
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonEmptyCart))

	shopper := uuid.New()
	variant := dbtest.SeedVariant(t, h.conn, dbtest.VariantSpec{BasePriceCents: 1000, Stock: 4})
	_, err = h.carts.Add(ctx, shopper, variant.ID, 1)
	require.NoError(t, err)

	state, err := h.checkout.Begin(ctx, shopper)
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingAddress, state.Stage)
	assert.True(t, state.AddressRequired)
	assert.Empty(t, state.Addresses)

	dbtest.SeedAddress(t, h.conn, shopper)
	state, err = h.checkout.Begin(ctx, shopper)
	require.NoError(t, err)
	assert.False(t, state.AddressRequired)
	assert.Len(t, state.Addresses, 1)
}

func TestCardCheckoutCompletesAndClearsCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.seedCart(t, 5, 2)

	state := h.place(t, f, enums.PaymentMethodCreditCard)
	require.Equal(t, StageAwaitingPayment, state.Stage)
	orderID := state.Order.ID
	assert.Equal(t, "100.00", state.Order.Total.Display)
	assert.Equal(t, 3, dbtest.Stock(t, h.conn, f.variant.ID))

	resumed, err := h.checkout.Begin(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingPayment, resumed.Stage)
	assert.Equal(t, orderID, resumed.Order.ID)

	state, err = h.checkout.StartPayment(ctx, StartPaymentInput{ShopperID: f.id, OrderID: orderID, AmountCents: 10000, Currency: "usd"})
	require.NoError(t, err)
	require.NotNil(t, state.Intent)
	intentID := state.Intent.ID

	state, err = h.checkout.Authorize(ctx, AuthorizeInput{ShopperID: f.id, OrderID: orderID, IntentID: intentID, PaymentMethodToken: gatewaytest.TokenSuccess})
	require.NoError(t, err)
	assert.Equal(t, payments.ConfirmationConfirmed, state.Confirmation.Status)
	assert.Equal(t, 2, h.cartCount(t, f.id))

	state, err = h.checkout.Complete(ctx, f.id, orderID, intentID)
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, state.Stage)
	assert.Equal(t, enums.PaymentStatusPaid, state.Order.PaymentStatus)
	assert.Zero(t, h.cartCount(t, f.id))

	_, err = h.checkout.StartPayment(ctx, StartPaymentInput{ShopperID: f.id, OrderID: orderID, AmountCents: 10000, Currency: "usd"})
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonAlreadyPaid))
}

func TestCompleteAfterWebhookSettlement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.seedCart(t, 5, 1)
	orderID := h.place(t, f, enums.PaymentMethodCreditCard).Order.ID

	state, err := h.checkout.StartPayment(ctx, StartPaymentInput{ShopperID: f.id, OrderID: orderID, AmountCents: 5000, Currency: "usd"})
	require.NoError(t, err)
	intentID := state.Intent.ID
	_, err = h.checkout.Authorize(ctx, AuthorizeInput{ShopperID: f.id, OrderID: orderID, IntentID: intentID, PaymentMethodToken: gatewaytest.TokenSuccess})
	require.NoError(t, err)

	result, err := h.checkout.Reconcile(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, payments.ReconcileSettled, result.Outcome)

	state, err = h.checkout.Complete(ctx, f.id, orderID, intentID)
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, state.Stage)
	assert.Equal(t, enums.PaymentStatusPaid, state.Order.PaymentStatus)
	assert.Zero(t, h.cartCount(t, f.id))

	_, err = h.checkout.Complete(ctx, f.id, orderID, "pi_unrelated")
	if !pkgerrors.IsReason(err, pkgerrors.ReasonAlreadyPaid) {
		t.Fatalf("expected already paid for a foreign intent, got %v", err)
	}
}

func TestBeginIgnoresLinesOfSettledOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.seedCart(t, 5, 1)
	orderID := h.place(t, f, enums.PaymentMethodCreditCard).Order.ID

	// Settled while the cart kept its consumed lines.
	err := h.conn.Model(&models.Order{}).Where("id = ?", orderID).Updates(map[string]any{
		"status":         enums.OrderStatusConfirmed,
		"payment_status": enums.PaymentStatusPaid,
	}).Error
	require.NoError(t, err)

	_, err = h.checkout.Begin(ctx, f.id)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonEmptyCart), "got %v", err)
	assert.Zero(t, h.cartCount(t, f.id))
}

func TestOutOfStockKeepsCartUntouched(t *testing.T) {
	h := newHarness(t)
	f := h.seedCart(t, 5, 2)
	require.NoError(t, h.conn.Model(&models.ProductVariant{}).Where("id = ?", f.variant.ID).Update("stock_quantity", 1).Error)

	_, err := h.checkout.PlaceOrder(context.Background(), PlaceOrderInput{ShopperID: f.id, AddressID: f.address.ID, PaymentMethod: enums.PaymentMethodCreditCard})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOutOfStock))
	assert.Equal(t, 1, dbtest.Stock(t, h.conn, f.variant.ID))
	assert.Equal(t, 2, h.cartCount(t, f.id))

	state, err := h.checkout.Begin(context.Background(), f.id)
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingAddress, state.Stage)
}

func TestDeclineKeepsOrderRetryable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.seedCart(t, 5, 2)
	orderID := h.place(t, f, enums.PaymentMethodCreditCard).Order.ID

	state, err := h.checkout.StartPayment(ctx, StartPaymentInput{ShopperID: f.id, OrderID: orderID, AmountCents: 10000, Currency: "usd"})
	require.NoError(t, err)
	first := state.Intent.ID

	state, err = h.checkout.Authorize(ctx, AuthorizeInput{ShopperID: f.id, OrderID: orderID, IntentID: first, PaymentMethodToken: gatewaytest.TokenDeclined})
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingPayment, state.Stage)
	assert.Equal(t, gatewaytest.DeclineMessage, state.DeclineReason)
	assert.Equal(t, orderID, state.Order.ID)
	assert.Equal(t, enums.PaymentStatusUnpaid, state.Order.PaymentStatus)
	assert.Equal(t, 2, h.cartCount(t, f.id))

	state, err = h.checkout.State(ctx, f.id, orderID)
	require.NoError(t, err)
	assert.Equal(t, gatewaytest.DeclineMessage, state.DeclineReason)

	state, err = h.checkout.StartPayment(ctx, StartPaymentInput{ShopperID: f.id, OrderID: orderID, AmountCents: 10000, Currency: "usd"})
	require.NoError(t, err)
	assert.NotEqual(t, first, state.Intent.ID)
	assert.Equal(t, 2, state.Attempts)
}

func TestSettleFailureKeepsCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.seedCart(t, 5, 1)
	orderID := h.place(t, f, enums.PaymentMethodCreditCard).Order.ID

	state, err := h.checkout.StartPayment(ctx, StartPaymentInput{ShopperID: f.id, OrderID: orderID, AmountCents: 5000, Currency: "usd"})
	require.NoError(t, err)
	intentID := state.Intent.ID
	_, err = h.checkout.Authorize(ctx, AuthorizeInput{ShopperID: f.id, OrderID: orderID, IntentID: intentID, PaymentMethodToken: gatewaytest.TokenSuccess})
	require.NoError(t, err)

	h.gateway.SetUnavailable(true)
	_, err = h.checkout.Complete(ctx, f.id, orderID, intentID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonGatewayUnavailable))
	assert.Equal(t, 1, h.cartCount(t, f.id))

	state, err = h.checkout.State(ctx, f.id, orderID)
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingPayment, state.Stage)

	h.gateway.SetUnavailable(false)
	result, err := h.checkout.Reconcile(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, payments.ReconcileSettled, result.Outcome)
	assert.Zero(t, h.cartCount(t, f.id))
}

func TestCompleteRejectsUnconfirmedIntent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.seedCart(t, 5, 1)
	orderID := h.place(t, f, enums.PaymentMethodCreditCard).Order.ID

	state, err := h.checkout.StartPayment(ctx, StartPaymentInput{ShopperID: f.id, OrderID: orderID, AmountCents: 5000, Currency: "usd"})
	require.NoError(t, err)

	_, err = h.checkout.Complete(ctx, f.id, orderID, state.Intent.ID)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonSettlementPending))
	assert.Equal(t, 1, h.cartCount(t, f.id))

	_, err = h.checkout.Complete(ctx, uuid.New(), orderID, state.Intent.ID)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOrderNotFound))
}

func TestCashOnDeliveryCompletesWithoutGateway(t *testing.T) {
	h := newHarness(t)
	f := h.seedCart(t, 5, 2)

	state := h.place(t, f, enums.PaymentMethodCashOnDelivery)
	assert.Equal(t, StageCompleted, state.Stage)
	assert.Equal(t, enums.OrderStatusConfirmed, state.Order.Status)
	assert.Equal(t, enums.PaymentStatusUnpaid, state.Order.PaymentStatus)
	assert.Zero(t, h.cartCount(t, f.id))
	assert.Zero(t, h.gateway.Calls("create"))
}

func TestCancelReleasesStockAndUnlocksCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.seedCart(t, 5, 2)
	orderID := h.place(t, f, enums.PaymentMethodCreditCard).Order.ID

	state, err := h.checkout.Cancel(ctx, f.id, orderID)
	require.NoError(t, err)
	assert.Equal(t, StageFailed, state.Stage)
	assert.Equal(t, "cancelled", state.FailureReason)
	assert.Equal(t, 5, dbtest.Stock(t, h.conn, f.variant.ID))

	view, err := h.carts.Get(ctx, f.id)
	require.NoError(t, err)
	assert.False(t, view.Locked)
	assert.Equal(t, 2, view.ItemCount)

	_, err = h.checkout.StartPayment(ctx, StartPaymentInput{ShopperID: f.id, OrderID: orderID, AmountCents: 10000, Currency: "usd"})
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOrderClosed))
}

func TestCancelSettlesPaymentThatAlreadySucceeded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.seedCart(t, 5, 1)
	orderID := h.place(t, f, enums.PaymentMethodCreditCard).Order.ID

	state, err := h.checkout.StartPayment(ctx, StartPaymentInput{ShopperID: f.id, OrderID: orderID, AmountCents: 5000, Currency: "usd"})
	require.NoError(t, err)
	h.gateway.SetStatus(state.Intent.ID, payments.IntentSucceeded)

	_, err = h.checkout.Cancel(ctx, f.id, orderID)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonAlreadyPaid))
	assert.Equal(t, 4, dbtest.Stock(t, h.conn, f.variant.ID))
}

func TestExpireOutcomes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	idle := h.seedCart(t, 5, 1)
	idleOrder := h.place(t, idle, enums.PaymentMethodCreditCard).Order.ID
	outcome, err := h.checkout.Expire(ctx, idleOrder)
	require.NoError(t, err)
	assert.Equal(t, ExpireReleased, outcome)
	assert.Equal(t, 5, dbtest.Stock(t, h.conn, idle.variant.ID))

	state, err := h.checkout.State(ctx, idle.id, idleOrder)
	require.NoError(t, err)
	assert.Equal(t, StageFailed, state.Stage)
	assert.Equal(t, "expired", state.FailureReason)

	paid := h.seedCart(t, 5, 1)
	paidOrder := h.place(t, paid, enums.PaymentMethodCreditCard).Order.ID
	started, err := h.checkout.StartPayment(ctx, StartPaymentInput{ShopperID: paid.id, OrderID: paidOrder, AmountCents: 5000, Currency: "usd"})
	require.NoError(t, err)
	h.gateway.SetStatus(started.Intent.ID, payments.IntentSucceeded)
	outcome, err = h.checkout.Expire(ctx, paidOrder)
	require.NoError(t, err)
	assert.Equal(t, ExpireSettled, outcome)
	assert.Equal(t, 4, dbtest.Stock(t, h.conn, paid.variant.ID))

	processing := h.seedCart(t, 5, 1)
	processingOrder := h.place(t, processing, enums.PaymentMethodCreditCard).Order.ID
	started, err = h.checkout.StartPayment(ctx, StartPaymentInput{ShopperID: processing.id, OrderID: processingOrder, AmountCents: 5000, Currency: "usd"})
	require.NoError(t, err)
	h.gateway.SetStatus(started.Intent.ID, payments.IntentProcessing)
	outcome, err = h.checkout.Expire(ctx, processingOrder)
	require.NoError(t, err)
	assert.Equal(t, ExpireSkipped, outcome)

	h.gateway.SetUnavailable(true)
	_, err = h.checkout.Expire(ctx, processingOrder)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonGatewayUnavailable))
}

package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/locks"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type cartStore interface {
	Get(ctx context.Context, shopperID uuid.UUID) (*cart.View, error)
	Clear(ctx context.Context, shopperID uuid.UUID) error
}

type addressBook interface {
	List(ctx context.Context, shopperID uuid.UUID) ([]models.Address, error)
}

// Service drives one shopper through address, order, payment and settlement.
// Every step that touches an existing order holds that order's lock, taken
// before any shopper lock.
type Service interface {
	Begin(ctx context.Context, shopperID uuid.UUID) (*State, error)
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*State, error)
	StartPayment(ctx context.Context, input StartPaymentInput) (*State, error)
	Authorize(ctx context.Context, input AuthorizeInput) (*State, error)
	Complete(ctx context.Context, shopperID, orderID uuid.UUID, intentID string) (*State, error)
	Cancel(ctx context.Context, shopperID, orderID uuid.UUID) (*State, error)
	State(ctx context.Context, shopperID, orderID uuid.UUID) (*State, error)

	Reconcile(ctx context.Context, orderID uuid.UUID) (*payments.ReconcileResult, error)
	Expire(ctx context.Context, orderID uuid.UUID) (ExpireOutcome, error)
}

// ServiceParams wires the orchestrator.
type ServiceParams struct {
	Carts     cartStore
	Addresses addressBook
	Orders    orders.Service
	Payments  payments.Service
	Locker    locks.Locker
	Logger    *logger.Logger
}

type service struct {
	carts     cartStore
	addresses addressBook
	orders    orders.Service
	payments  payments.Service
	locker    locks.Locker
	logg      *logger.Logger
}

// NewService builds the checkout orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address service required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	return &service{
		carts:     params.Carts,
		addresses: params.Addresses,
		orders:    params.Orders,
		payments:  params.Payments,
		locker:    params.Locker,
		logg:      params.Logger,
	}, nil
}

// PlaceOrderInput turns the current cart into an order.
type PlaceOrderInput struct {
	ShopperID     uuid.UUID
	AddressID     uuid.UUID
	PaymentMethod enums.PaymentMethod
	Notes         *string
}

// StartPaymentInput opens a gateway intent for a pending order.
type StartPaymentInput struct {
	ShopperID   uuid.UUID
	OrderID     uuid.UUID
	AmountCents int64
	Currency    string
}

// AuthorizeInput confirms an intent server side with a gateway token.
type AuthorizeInput struct {
	ShopperID          uuid.UUID
	OrderID            uuid.UUID
	IntentID           string
	PaymentMethodToken string
}

// ExpireOutcome is what the abandonment sweep did with one order.
type ExpireOutcome string

const (
	ExpireReleased ExpireOutcome = "released"
	ExpireSettled  ExpireOutcome = "settled"
	ExpireSkipped  ExpireOutcome = "skipped"
)

func (s *service) Begin(ctx context.Context, shopperID uuid.UUID) (*State, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "shopper required")
	}
	view, err := s.carts.Get(ctx, shopperID)
	if err != nil {
		return nil, err
	}
	if view.Locked && view.OrderID != nil {
		// A pending order already holds the cart; resume it.
		return s.State(ctx, shopperID, *view.OrderID)
	}
	if len(view.Items) == 0 {
		return nil, orders.EmptyCartError()
	}
	list, err := s.addresses.List(ctx, shopperID)
	if err != nil {
		return nil, err
	}
	return &State{
		Stage:           StageAwaitingAddress,
		Cart:            view,
		Addresses:       address.ViewsOf(list),
		AddressRequired: len(list) == 0,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*State, error) {
	order, err := s.orders.CreateOrder(ctx, orders.CreateInput{
		ShopperID:     input.ShopperID,
		AddressID:     input.AddressID,
		PaymentMethod: input.PaymentMethod,
		Notes:         input.Notes,
	})
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod.RequiresGateway() {
		return stateOf(order, nil), nil
	}

	var state *State
	err = s.withOrder(ctx, order.ID, func(ctx context.Context) error {
		confirmed, err := s.orders.ConfirmWithoutPayment(ctx, order.ID)
		if err != nil {
			return err
		}
		s.clearCart(ctx, confirmed)
		state = stateOf(confirmed, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *service) StartPayment(ctx context.Context, input StartPaymentInput) (*State, error) {
	var state *State
	err := s.withOrder(ctx, input.OrderID, func(ctx context.Context) error {
		order, err := s.orders.Get(ctx, input.ShopperID, input.OrderID)
		if err != nil {
			return err
		}
		intent, err := s.payments.CreateIntent(ctx, order.ID, input.AmountCents, input.Currency)
		if err != nil {
			return err
		}
		state = stateOf(order, nil)
		state.Intent = intent
		state.Attempts = intent.Attempt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *service) Authorize(ctx context.Context, input AuthorizeInput) (*State, error) {
	var state *State
	err := s.withOrder(ctx, input.OrderID, func(ctx context.Context) error {
		order, err := s.orders.Get(ctx, input.ShopperID, input.OrderID)
		if err != nil {
			return err
		}
		result, err := s.payments.Confirm(ctx, payments.ConfirmInput{
			OrderID:            order.ID,
			IntentID:           input.IntentID,
			PaymentMethodToken: input.PaymentMethodToken,
		})
		if err != nil {
			return err
		}
		latest, err := s.payments.Latest(ctx, order.ID)
		if err != nil {
			return err
		}
		state = stateOf(order, latest)
		state.Confirmation = result
		if result.Status == payments.ConfirmationDeclined {
			state.DeclineReason = result.DeclineReason
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Complete settles the payment with the gateway and only then clears the
// cart. Any settlement error leaves the cart as it was.
func (s *service) Complete(ctx context.Context, shopperID, orderID uuid.UUID, intentID string) (*State, error) {
	var state *State
	err := s.withOrder(ctx, orderID, func(ctx context.Context) error {
		if _, err := s.orders.Get(ctx, shopperID, orderID); err != nil {
			return err
		}
		paid, err := s.payments.Settle(ctx, orderID, intentID)
		if err != nil {
			s.logStep(ctx, orderID, "checkout.settle_failed", err)
			return err
		}
		s.clearCart(ctx, paid)
		state = stateOf(paid, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *service) Cancel(ctx context.Context, shopperID, orderID uuid.UUID) (*State, error) {
	var state *State
	err := s.withOrder(ctx, orderID, func(ctx context.Context) error {
		order, err := s.orders.Get(ctx, shopperID, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusPending && order.PaymentMethod.RequiresGateway() {
			// Money may already be at the gateway; never release a paid order.
			result, err := s.payments.Reconcile(ctx, orderID)
			if err != nil {
				return err
			}
			switch result.Outcome {
			case payments.ReconcileSettled:
				s.clearCart(ctx, result.Order)
				return orders.AlreadyPaidError(orderID)
			case payments.ReconcileProcessing:
				return payments.SettlementPendingError("", payments.IntentProcessing)
			}
		}
		released, err := s.orders.Release(ctx, orderID, orders.ReleaseShopperCancelled)
		if err != nil {
			return err
		}
		state = stateOf(released, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *service) State(ctx context.Context, shopperID, orderID uuid.UUID) (*State, error) {
	order, err := s.orders.Get(ctx, shopperID, orderID)
	if err != nil {
		return nil, err
	}
	latest, err := s.payments.Latest(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return stateOf(order, latest), nil
}

// Reconcile asks the gateway about an order whose settlement never arrived.
func (s *service) Reconcile(ctx context.Context, orderID uuid.UUID) (*payments.ReconcileResult, error) {
	var result *payments.ReconcileResult
	err := s.withOrder(ctx, orderID, func(ctx context.Context) error {
		var err error
		result, err = s.payments.Reconcile(ctx, orderID)
		if err != nil {
			return err
		}
		if result.Outcome == payments.ReconcileSettled {
			s.clearCart(ctx, result.Order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Expire releases an abandoned order unless the gateway shows it was paid or
// is still processing.
func (s *service) Expire(ctx context.Context, orderID uuid.UUID) (ExpireOutcome, error) {
	outcome := ExpireSkipped
	err := s.withOrder(ctx, orderID, func(ctx context.Context) error {
		order, err := s.orders.Load(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending || order.PaymentStatus == enums.PaymentStatusPaid {
			return nil
		}
		if order.PaymentMethod.RequiresGateway() {
			result, err := s.payments.Reconcile(ctx, orderID)
			if err != nil {
				return err
			}
			switch result.Outcome {
			case payments.ReconcileSettled:
				s.clearCart(ctx, result.Order)
				outcome = ExpireSettled
				return nil
			case payments.ReconcileProcessing, payments.ReconcileAlreadyPaid, payments.ReconcileClosed:
				return nil
			}
		}
		if _, err := s.orders.Release(ctx, orderID, orders.ReleaseAbandoned); err != nil {
			return err
		}
		outcome = ExpireReleased
		return nil
	})
	if err != nil {
		return ExpireSkipped, err
	}
	return outcome, nil
}

func (s *service) withOrder(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return locks.With(ctx, s.locker, locks.OrderKey(orderID), fn)
}

// clearCart empties the cart of a settled order. Lines bound to a settled
// order are pruned on the next cart mutation anyway, so failure only logs.
func (s *service) clearCart(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	if err := s.carts.Clear(ctx, order.ShopperID); err != nil {
		s.logStep(ctx, order.ID, "checkout.cart_clear_failed", err)
	}
}

func (s *service) logStep(ctx context.Context, orderID uuid.UUID, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"error":    err.Error(),
	}), msg)
}

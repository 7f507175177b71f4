package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/locks"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const (
	maxOrderNumberAttempts = 3
	maxNotesLength         = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service builds immutable orders from carts and manages their release.
type Service interface {
	CreateOrder(ctx context.Context, input CreateInput) (*models.Order, error)
	Release(ctx context.Context, orderID uuid.UUID, reason ReleaseReason) (*models.Order, error)
	Get(ctx context.Context, shopperID, orderID uuid.UUID) (*models.Order, error)
	Load(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, shopperID uuid.UUID, page pagination.Params) (*ListResult, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, input PaidInput) (*models.Order, error)
	ConfirmWithoutPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// ServiceParams wires the order builder.
type ServiceParams struct {
	Repo              Repository
	Carts             *cart.Repository
	Catalog           *catalog.Repository
	Addresses         *address.Repository
	Tx                txRunner
	Locker            locks.Locker
	Outbox            outbox.Emitter
	Logger            *logger.Logger
	ShippingCostCents int64
	Currency          string
	Now               func() time.Time
}

type service struct {
	repo      Repository
	carts     *cart.Repository
	catalog   *catalog.Repository
	addresses *address.Repository
	tx        txRunner
	locker    locks.Locker
	outbox    outbox.Emitter
	logg      *logger.Logger
	shipping  int64
	currency  string
	numbers   *numberGenerator
	now       func() time.Time
}

// NewService validates the dependencies and builds the order builder.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.ShippingCostCents < 0 {
		return nil, fmt.Errorf("shipping cost must be non-negative")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		carts:     params.Carts,
		catalog:   params.Catalog,
		addresses: params.Addresses,
		tx:        params.Tx,
		locker:    params.Locker,
		outbox:    params.Outbox,
		logg:      params.Logger,
		shipping:  params.ShippingCostCents,
		currency:  money.NormalizeCurrency(params.Currency),
		numbers:   newNumberGenerator(now),
		now:       now,
	}, nil
}

// CreateInput is a checkout request for the shopper's current cart.
type CreateInput struct {
	ShopperID     uuid.UUID
	AddressID     uuid.UUID
	PaymentMethod enums.PaymentMethod
	Notes         *string
}

// PaidInput carries the verified gateway settlement.
type PaidInput struct {
	OrderID       uuid.UUID
	TransactionID string
	Provider      string
	AmountCents   int64
	Currency      string
	PaidAt        time.Time
}

// ListResult is one page of a shopper's orders.
type ListResult struct {
	Orders []models.Order
	Page   pagination.Params
	Total  int64
}

func (s *service) CreateOrder(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.ShopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "shopper required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": input.PaymentMethod})
	}
	notes := normalizeNotes(input.Notes)
	if notes != nil && len(*notes) > maxNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}
	input.Notes = notes

	var created *models.Order
	err := locks.With(ctx, s.locker, locks.ShopperKey(input.ShopperID), func(ctx context.Context) error {
		for attempt := 1; ; attempt++ {
			order, err := s.createOnce(ctx, input)
			if err == nil {
				created = order
				return nil
			}
			if attempt < maxOrderNumberAttempts && db.IsUniqueViolation(err, "order_number") {
				continue
			}
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":     created.ID.String(),
			"order_number": created.OrderNumber,
			"total_cents":  created.TotalCents,
		})
		s.logg.Info(logCtx, "order.created")
	}
	return created, nil
}

func (s *service) createOnce(ctx context.Context, input CreateInput) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		stock := s.catalog.WithTx(tx)

		lines, err := carts.Unconsumed(ctx, input.ShopperID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(lines) == 0 {
			return EmptyCartError()
		}

		addr, err := address.Resolve(ctx, s.addresses.WithTx(tx), input.ShopperID, input.AddressID)
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(lines))
		lineIDs := make([]uuid.UUID, 0, len(lines))
		var subtotal int64
		for _, line := range lines {
			if line.Variant == nil {
				return catalog.VariantNotFoundError(line.ProductVariantID)
			}
			variant := *line.Variant
			ok, err := stock.DecrementStock(ctx, variant.ID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
			}
			if !ok {
				available := variant.StockQuantity
				if !variant.Purchasable() {
					available = 0
				} else if live, err := stock.StockOf(ctx, variant.ID); err == nil {
					available = live
				}
				return checkout.OutOfStockError(checkout.StockCheck{
					VariantID: variant.ID,
					SKU:       variant.SKU,
					Requested: line.Quantity,
					Available: available,
				})
			}

			unit := variant.UnitPriceCents()
			lineTotal := unit * int64(line.Quantity)
			subtotal += lineTotal
			productName := ""
			if variant.Product != nil {
				productName = variant.Product.Name
			}
			items = append(items, models.OrderItem{
				ProductVariantID: variant.ID,
				ProductName:      productName,
				ProductSKU:       variant.SKU,
				Size:             variant.Size,
				Color:            variant.Color,
				Quantity:         line.Quantity,
				UnitPriceCents:   unit,
				LineTotalCents:   lineTotal,
			})
			lineIDs = append(lineIDs, line.ID)
		}

		addressID := addr.ID
		order = &models.Order{
			OrderNumber:        s.numbers.Next(),
			ShopperID:          input.ShopperID,
			AddressID:          &addressID,
			Status:             enums.OrderStatusPending,
			PaymentMethod:      input.PaymentMethod,
			PaymentStatus:      enums.PaymentStatusUnpaid,
			Currency:           s.currency,
			SubtotalCents:      subtotal,
			ShippingCostCents:  s.shipping,
			TotalCents:         subtotal + s.shipping,
			ShippingFullName:   addr.FullName,
			ShippingPhone:      addr.Phone,
			ShippingLine1:      addr.Line1,
			ShippingLine2:      addr.Line2,
			ShippingCity:       addr.City,
			ShippingState:      addr.State,
			ShippingPostalCode: addr.PostalCode,
			ShippingCountry:    addr.Country,
			Notes:              input.Notes,
			Items:              items,
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		claimed, err := carts.Consume(ctx, lineIDs, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume cart lines")
		}
		if claimed != int64(len(lineIDs)) {
			return EmptyCartError()
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{ShopperID: input.ShopperID, Source: "checkout"},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				ShopperID:     order.ShopperID,
				PaymentMethod: order.PaymentMethod,
				TotalCents:    order.TotalCents,
				Currency:      order.Currency,
				ItemCount:     len(items),
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, err
		}
		if db.IsUniqueViolation(err, "order_number") {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

// Release returns the stock of a pending order and unlocks the cart lines.
// Releasing an already released order is a no-op.
func (s *service) Release(ctx context.Context, orderID uuid.UUID, reason ReleaseReason) (*models.Order, error) {
	status := reason.Status()
	var released *models.Order
	var changed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundError(orderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		released = order
		if err := checkReleasable(order); err != nil || order.Status.IsReleased() {
			return err
		}

		at := s.now().UTC()
		ok, err := repo.TransitionPending(ctx, orderID, map[string]any{
			"status":      status,
			"released_at": at,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release order")
		}
		if !ok {
			current, err := repo.FindByID(ctx, orderID, false)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
			}
			released = current
			return checkReleasable(current)
		}

		stock := s.catalog.WithTx(tx)
		for _, item := range order.Items {
			if err := stock.IncrementStock(ctx, item.ProductVariantID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
			}
		}
		if _, err := s.carts.WithTx(tx).Unconsume(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unlock cart lines")
		}

		order.Status = status
		order.ReleasedAt = &at
		changed = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderReleased,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderReleasedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				ShopperID:   order.ShopperID,
				Status:      status,
				Reason:      string(reason),
				ReleasedAt:  at,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if changed && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": orderID.String(),
			"status":   status,
			"reason":   reason,
		})
		s.logg.Info(logCtx, "order.released")
	}
	return released, nil
}

// checkReleasable allows pending orders and already released ones.
func checkReleasable(order *models.Order) error {
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return AlreadyPaidError(order.ID)
	}
	if order.Status == enums.OrderStatusPending || order.Status.IsReleased() {
		return nil
	}
	return ClosedError(order.ID, order.Status.String())
}

func (s *service) Get(ctx context.Context, shopperID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindForShopper(ctx, shopperID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError(orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// Load fetches an order regardless of owner, for background jobs.
func (s *service) Load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError(orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, shopperID uuid.UUID, page pagination.Params) (*ListResult, error) {
	page = page.Normalize()
	orders, total, err := s.repo.ListByShopper(ctx, shopperID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &ListResult{Orders: orders, Page: page, Total: total}, nil
}

// MarkPaid records a verified settlement inside the caller's transaction and
// emits order_paid.
func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, input PaidInput) (*models.Order, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if strings.TrimSpace(input.TransactionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment transaction id required")
	}
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	paidAt = paidAt.UTC()

	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, input.OrderID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError(input.OrderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := checkPayable(order); err != nil {
		return nil, err
	}

	ok, err := repo.TransitionPending(ctx, order.ID, map[string]any{
		"status":                 enums.OrderStatusConfirmed,
		"payment_status":         enums.PaymentStatusPaid,
		"payment_transaction_id": input.TransactionID,
		"paid_at":                paidAt,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if !ok {
		current, err := repo.FindByID(ctx, order.ID, false)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		if err := checkPayable(current); err != nil {
			return nil, err
		}
		return nil, ClosedError(order.ID, current.Status.String())
	}

	txnID := input.TransactionID
	order.Status = enums.OrderStatusConfirmed
	order.PaymentStatus = enums.PaymentStatusPaid
	order.PaymentTransactionID = &txnID
	order.PaidAt = &paidAt

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderPaidEvent{
			OrderID:              order.ID,
			OrderNumber:          order.OrderNumber,
			ShopperID:            order.ShopperID,
			PaymentTransactionID: txnID,
			Provider:             input.Provider,
			AmountCents:          input.AmountCents,
			Currency:             input.Currency,
			PaidAt:               paidAt,
		},
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// checkPayable allows only pending, unpaid orders.
func checkPayable(order *models.Order) error {
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return AlreadyPaidError(order.ID)
	}
	if order.Status != enums.OrderStatusPending {
		return ClosedError(order.ID, order.Status.String())
	}
	return nil
}

// ConfirmWithoutPayment confirms a cash-on-delivery order; it stays unpaid
// until the courier collects.
func (s *service) ConfirmWithoutPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var confirmed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundError(orderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.PaymentMethod.RequiresGateway() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "card orders are confirmed by payment settlement")
		}
		if order.Status == enums.OrderStatusConfirmed {
			confirmed = order
			return nil
		}
		if err := checkPayable(order); err != nil {
			return err
		}
		ok, err := repo.TransitionPending(ctx, orderID, map[string]any{"status": enums.OrderStatusConfirmed})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		if !ok {
			return ClosedError(orderID, order.Status.String())
		}
		order.Status = enums.OrderStatusConfirmed
		confirmed = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderConfirmedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				ShopperID:     order.ShopperID,
				PaymentMethod: order.PaymentMethod,
				TotalCents:    order.TotalCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func (s *service) FindAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	orders, err := s.repo.FindAbandoned(ctx, cutoff.UTC(), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find abandoned orders")
	}
	return orders, nil
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

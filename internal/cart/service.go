package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/locks"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the server-authoritative cart of every shopper.
type Service interface {
	Get(ctx context.Context, shopperID uuid.UUID) (*View, error)
	Add(ctx context.Context, shopperID, variantID uuid.UUID, qty int) (*View, error)
	UpdateQuantity(ctx context.Context, shopperID, itemID uuid.UUID, qty int) (*View, error)
	Remove(ctx context.Context, shopperID, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, shopperID uuid.UUID) error
}

type service struct {
	repo    *Repository
	catalog *catalog.Repository
	tx      txRunner
	locker  locks.Locker
	logg    *logger.Logger
}

// NewService builds the cart service.
func NewService(repo *Repository, catalogRepo *catalog.Repository, tx txRunner, locker locks.Locker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	return &service{
		repo:    repo,
		catalog: catalogRepo,
		tx:      tx,
		locker:  locker,
		logg:    logg,
	}, nil
}

// View is a cart with derived totals.
type View struct {
	ID        uuid.UUID    `json:"id"`
	ShopperID uuid.UUID    `json:"shopper_id"`
	Items     []LineView   `json:"items"`
	ItemCount int          `json:"item_count"`
	Subtotal  money.Amount `json:"subtotal"`
	Locked    bool         `json:"locked"`
	OrderID   *uuid.UUID   `json:"pending_order_id,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// LineView is one cart line.
type LineView struct {
	ID               uuid.UUID            `json:"id"`
	ProductVariantID uuid.UUID            `json:"product_variant_id"`
	Variant          *catalog.VariantView `json:"variant,omitempty"`
	Quantity         int                  `json:"quantity"`
	UnitPrice        money.Amount         `json:"unit_price"`
	LineTotal        money.Amount         `json:"line_total"`
}

// CartLockedError is returned while a pending order holds the cart's lines.
func CartLockedError(orderID uuid.UUID) error {
	return pkgerrors.NewReason(pkgerrors.CodeConflict, pkgerrors.ReasonCartLocked, "cart is locked by a pending order").
		WithDetails(map[string]any{"order_id": orderID})
}

func (s *service) Get(ctx context.Context, shopperID uuid.UUID) (*View, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "shopper required")
	}
	cart, err := s.repo.FindByShopper(ctx, shopperID)
	if err == nil && !hasConsumedLines(cart) {
		return toView(cart), nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	// Lines tied to an order go through mutate so settled ones are pruned.
	return s.mutate(ctx, shopperID, func(ctx context.Context, repo *Repository, _ *catalog.Repository, cart *models.Cart) error {
		return nil
	})
}

func (s *service) Add(ctx context.Context, shopperID, variantID uuid.UUID, qty int) (*View, error) {
	if err := checkout.ValidateQuantity(qty); err != nil {
		return nil, err
	}
	return s.mutate(ctx, shopperID, func(ctx context.Context, repo *Repository, cat *catalog.Repository, cart *models.Cart) error {
		if err := ensureUnlocked(ctx, repo, cart); err != nil {
			return err
		}
		variant, err := catalog.Purchasable(ctx, cat, variantID)
		if err != nil {
			return err
		}

		existing, err := repo.FindItemByVariant(ctx, cart.ID, variantID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		total := qty
		if existing != nil {
			total += existing.Quantity
		}
		if err := checkout.ValidateQuantity(total); err != nil {
			return err
		}
		if err := checkout.ValidateStock([]checkout.StockCheck{{
			VariantID: variant.ID,
			SKU:       variant.SKU,
			Requested: total,
			Available: variant.StockQuantity,
		}}); err != nil {
			return err
		}

		if existing != nil {
			if err := repo.UpdateItem(ctx, existing.ID, total, variant.UnitPriceCents()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
			return nil
		}
		item := &models.CartItem{
			CartID:           cart.ID,
			ProductVariantID: variant.ID,
			Quantity:         total,
			UnitPriceCents:   variant.UnitPriceCents(),
		}
		if err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
		}
		return nil
	})
}

func (s *service) UpdateQuantity(ctx context.Context, shopperID, itemID uuid.UUID, qty int) (*View, error) {
	if err := checkout.ValidateQuantity(qty); err != nil {
		return nil, err
	}
	return s.mutate(ctx, shopperID, func(ctx context.Context, repo *Repository, cat *catalog.Repository, cart *models.Cart) error {
		if err := ensureUnlocked(ctx, repo, cart); err != nil {
			return err
		}
		item, err := repo.FindItem(ctx, cart.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		variant, err := catalog.Purchasable(ctx, cat, item.ProductVariantID)
		if err != nil {
			return err
		}
		if err := checkout.ValidateStock([]checkout.StockCheck{{
			VariantID: variant.ID,
			SKU:       variant.SKU,
			Requested: qty,
			Available: variant.StockQuantity,
		}}); err != nil {
			return err
		}
		if err := repo.UpdateItem(ctx, item.ID, qty, variant.UnitPriceCents()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return nil
	})
}

func (s *service) Remove(ctx context.Context, shopperID, itemID uuid.UUID) (*View, error) {
	return s.mutate(ctx, shopperID, func(ctx context.Context, repo *Repository, _ *catalog.Repository, cart *models.Cart) error {
		if err := ensureUnlocked(ctx, repo, cart); err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, cart.ID, itemID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
		}
		return nil
	})
}

// Clear empties the cart once its order has settled.
func (s *service) Clear(ctx context.Context, shopperID uuid.UUID) error {
	_, err := s.mutate(ctx, shopperID, func(ctx context.Context, repo *Repository, _ *catalog.Repository, cart *models.Cart) error {
		if err := repo.DeleteAll(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	return err
}

type mutation func(ctx context.Context, repo *Repository, cat *catalog.Repository, cart *models.Cart) error

// mutate runs fn under the shopper lock inside one transaction and returns
// the cart as committed.
func (s *service) mutate(ctx context.Context, shopperID uuid.UUID, fn mutation) (*View, error) {
	if shopperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "shopper required")
	}
	var view *View
	err := locks.With(ctx, s.locker, locks.ShopperKey(shopperID), func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			cart, err := repo.FindOrCreate(ctx, shopperID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}
			if pruned, err := repo.PruneSettled(ctx, cart.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune settled lines")
			} else if pruned > 0 && s.logg != nil {
				s.logg.Info(s.logg.WithField(ctx, "pruned_lines", pruned), "cart.settled_lines_pruned")
			}
			if err := fn(ctx, repo, s.catalog.WithTx(tx), cart); err != nil {
				return err
			}
			fresh, err := repo.FindByShopper(ctx, shopperID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
			}
			view = toView(fresh)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func hasConsumedLines(cart *models.Cart) bool {
	for _, item := range cart.Items {
		if item.OrderID != nil {
			return true
		}
	}
	return false
}

func ensureUnlocked(ctx context.Context, repo *Repository, cart *models.Cart) error {
	orderID, err := repo.ConsumedBy(ctx, cart.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check cart lock")
	}
	if orderID != nil {
		return CartLockedError(*orderID)
	}
	return nil
}

func toView(cart *models.Cart) *View {
	view := &View{
		ID:        cart.ID,
		ShopperID: cart.ShopperID,
		Items:     make([]LineView, 0, len(cart.Items)),
		UpdatedAt: cart.UpdatedAt,
	}
	var subtotal int64
	for _, item := range cart.Items {
		line := LineView{
			ID:               item.ID,
			ProductVariantID: item.ProductVariantID,
			Quantity:         item.Quantity,
			UnitPrice:        money.FromCents(item.UnitPriceCents),
			LineTotal:        money.FromCents(item.UnitPriceCents * int64(item.Quantity)),
		}
		if item.Variant != nil {
			v := catalog.ViewOf(*item.Variant)
			line.Variant = &v
		}
		if item.OrderID != nil && view.OrderID == nil {
			view.Locked = true
			view.OrderID = item.OrderID
		}
		view.ItemCount += item.Quantity
		subtotal += item.UnitPriceCents * int64(item.Quantity)
		view.Items = append(view.Items, line)
	}
	view.Subtotal = money.FromCents(subtotal)
	return view
}

package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// OrderView is the response shape for a single order.
type OrderView struct {
	ID                   uuid.UUID           `json:"id"`
	OrderNumber          string              `json:"order_number"`
	Status               enums.OrderStatus   `json:"status"`
	PaymentMethod        enums.PaymentMethod `json:"payment_method"`
	PaymentStatus        enums.PaymentStatus `json:"payment_status"`
	Currency             string              `json:"currency"`
	Subtotal             money.Amount        `json:"subtotal"`
	ShippingCost         money.Amount        `json:"shipping_cost"`
	Total                money.Amount        `json:"total"`
	ShippingAddress      ShippingView        `json:"shipping_address"`
	Notes                *string             `json:"notes,omitempty"`
	PaymentTransactionID *string             `json:"payment_transaction_id,omitempty"`
	PaidAt               *time.Time          `json:"paid_at,omitempty"`
	Items                []ItemView          `json:"items"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

type ShippingView struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type ItemView struct {
	ID               uuid.UUID    `json:"id"`
	ProductVariantID uuid.UUID    `json:"product_variant_id"`
	ProductName      string       `json:"product_name"`
	ProductSKU       string       `json:"product_sku"`
	Size             *string      `json:"size,omitempty"`
	Color            *string      `json:"color,omitempty"`
	Quantity         int          `json:"quantity"`
	UnitPrice        money.Amount `json:"unit_price"`
	LineTotal        money.Amount `json:"line_total"`
}

// ListView is one page of orders with its paging metadata.
type ListView struct {
	Orders []OrderView `json:"orders"`
	Page   int         `json:"page"`
	Limit  int         `json:"limit"`
	Total  int64       `json:"total"`
}

// ViewOf renders an order with both cents and display amounts.
func ViewOf(order models.Order) OrderView {
	items := make([]ItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ItemView{
			ID:               item.ID,
			ProductVariantID: item.ProductVariantID,
			ProductName:      item.ProductName,
			ProductSKU:       item.ProductSKU,
			Size:             item.Size,
			Color:            item.Color,
			Quantity:         item.Quantity,
			UnitPrice:        money.FromCents(item.UnitPriceCents),
			LineTotal:        money.FromCents(item.LineTotalCents),
		})
	}
	return OrderView{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Currency:      order.Currency,
		Subtotal:      money.FromCents(order.SubtotalCents),
		ShippingCost:  money.FromCents(order.ShippingCostCents),
		Total:         money.FromCents(order.TotalCents),
		ShippingAddress: ShippingView{
			FullName:   order.ShippingFullName,
			Phone:      order.ShippingPhone,
			Line1:      order.ShippingLine1,
			Line2:      order.ShippingLine2,
			City:       order.ShippingCity,
			State:      order.ShippingState,
			PostalCode: order.ShippingPostalCode,
			Country:    order.ShippingCountry,
		},
		Notes:                order.Notes,
		PaymentTransactionID: order.PaymentTransactionID,
		PaidAt:               order.PaidAt,
		Items:                items,
		CreatedAt:            order.CreatedAt,
		UpdatedAt:            order.UpdatedAt,
	}
}

// ListViewOf renders a page of orders.
func ListViewOf(result *ListResult) ListView {
	if result == nil {
		return ListView{Orders: []OrderView{}, Page: 1, Limit: pagination.DefaultLimit}
	}
	views := make([]OrderView, 0, len(result.Orders))
	for _, order := range result.Orders {
		views = append(views, ViewOf(order))
	}
	return ListView{
		Orders: views,
		Page:   result.Page.Page,
		Limit:  result.Page.Limit,
		Total:  result.Total,
	}
}

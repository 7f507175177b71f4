package enums

// OrderStatus tracks the fulfilment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusExpired    OrderStatus = "expired"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusExpired,
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return member(orderStatuses, s) }

// IsReleased reports whether the order gave its stock back.
func (s OrderStatus) IsReleased() bool {
	return s == OrderStatusCancelled || s == OrderStatusExpired
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse(orderStatuses, "order status", value)
}

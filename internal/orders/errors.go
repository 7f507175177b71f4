package orders

import (
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// EmptyCartError is returned when there is nothing left to order.
func EmptyCartError() error {
	return pkgerrors.NewReason(pkgerrors.CodeConflict, pkgerrors.ReasonEmptyCart, "cart is empty")
}

// NotFoundError hides whether the order exists for another shopper.
func NotFoundError(orderID uuid.UUID) error {
	return pkgerrors.NewReason(pkgerrors.CodeNotFound, pkgerrors.ReasonOrderNotFound, "order not found").
		WithDetails(map[string]any{"order_id": orderID})
}

// AlreadyPaidError is returned for any attempt to pay or release a paid order.
func AlreadyPaidError(orderID uuid.UUID) error {
	return pkgerrors.NewReason(pkgerrors.CodeConflict, pkgerrors.ReasonAlreadyPaid, "order is already paid").
		WithDetails(map[string]any{"order_id": orderID})
}

// ClosedError is returned when the order left pending for a non-paid status.
func ClosedError(orderID uuid.UUID, status string) error {
	return pkgerrors.NewReason(pkgerrors.CodeStateConflict, pkgerrors.ReasonOrderClosed, "order is no longer pending").
		WithDetails(map[string]any{"order_id": orderID, "status": status})
}

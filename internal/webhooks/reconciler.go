package webhooks

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/payments"
)

// Reconciler re-reads an order's payment from the gateway and applies it.
type Reconciler interface {
	Reconcile(ctx context.Context, orderID uuid.UUID) (*payments.ReconcileResult, error)
}

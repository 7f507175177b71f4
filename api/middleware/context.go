package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type contextKey string

const ctxShopperID contextKey = "shopper_id"

// ShopperIDFromContext returns the authenticated shopper, or uuid.Nil.
func ShopperIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxShopperID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithShopperID injects the shopper identifier into the context.
func WithShopperID(ctx context.Context, shopperID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxShopperID, shopperID)
}

// RequireShopper returns the authenticated shopper or an unauthorized error.
func RequireShopper(ctx context.Context) (uuid.UUID, error) {
	id := ShopperIDFromContext(ctx)
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "shopper context missing")
	}
	return id, nil
}

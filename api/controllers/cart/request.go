package cart

import "github.com/google/uuid"

type addItemRequest struct {
	ProductVariantID uuid.UUID `json:"product_variant_id" validate:"required"`
	Quantity         int       `json:"quantity" validate:"gt=0"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

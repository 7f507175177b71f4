package addresses

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/address"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const maxFieldLength = 255

type createRequest struct {
	Title      string `json:"title" validate:"max=100"`
	FullName   string `json:"full_name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Line1      string `json:"address_line1" validate:"required"`
	Line2      string `json:"address_line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
	IsDefault  bool   `json:"is_default"`
}

func (r createRequest) toInput() address.CreateInput {
	return address.CreateInput{
		Title:      validators.SanitizeString(r.Title, 100),
		FullName:   validators.SanitizeString(r.FullName, maxFieldLength),
		Phone:      validators.SanitizeString(r.Phone, 32),
		Line1:      validators.SanitizeString(r.Line1, maxFieldLength),
		Line2:      validators.SanitizeString(r.Line2, maxFieldLength),
		City:       validators.SanitizeString(r.City, maxFieldLength),
		State:      validators.SanitizeString(r.State, maxFieldLength),
		PostalCode: validators.SanitizeString(r.PostalCode, 20),
		Country:    validators.SanitizeString(r.Country, maxFieldLength),
		IsDefault:  r.IsDefault,
	}
}

// List returns the shopper's saved addresses, default first.
func List(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address service unavailable"))
			return
		}
		shopperID, err := middleware.RequireShopper(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), shopperID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, address.ViewsOf(list))
	}
}

func Create(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address service unavailable"))
			return
		}
		shopperID, err := middleware.RequireShopper(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), shopperID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, address.ViewOf(*created))
	}
}

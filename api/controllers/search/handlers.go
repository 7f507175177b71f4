package search

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const maxQueryLength = 100

type suggester interface {
	Suggest(ctx context.Context, raw string) ([]catalog.Suggestion, error)
}

// Suggestions answers search-as-you-type lookups. Short queries get an empty list.
func Suggestions(svc suggester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "search unavailable"))
			return
		}
		query := validators.SanitizeString(r.URL.Query().Get("q"), maxQueryLength)

		result, err := svc.Suggest(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=30")
		responses.WriteSuccess(w, result)
	}
}

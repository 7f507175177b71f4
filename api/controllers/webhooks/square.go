package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	squarewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/square"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const squareSignatureHeader = "X-Square-Hmacsha256-Signature"

type SquareEventHandler interface {
	HandleEvent(ctx context.Context, event *squarewebhook.Event) error
}

type squareSigning interface {
	SigningSecret() string
	NotificationURL() string
}

// Square verifies and applies payment notifications.
func Square(svc SquareEventHandler, signing squareSigning, guard EventGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || signing == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "square webhook unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}
		sigHeader := r.Header.Get(squareSignatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "square signature missing"))
			return
		}
		if !squarewebhook.VerifySignature(signing.SigningSecret(), signing.NotificationURL(), payload, sigHeader) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid square signature"))
			return
		}

		var event squarewebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}
		eventID := event.DeliveryID()
		if eventID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id missing"))
			return
		}

		first, err := guard.Claim(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check event idempotency"))
			return
		}
		if !first {
			responses.WriteSuccess(w, receipt{Received: true, Duplicate: true})
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			_ = guard.Release(ctx, eventID)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("square event %s processed", eventID))
		}
		responses.WriteSuccess(w, receipt{Received: true})
	}
}

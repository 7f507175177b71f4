package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// retryAfterSeconds is advertised on retryable failures.
const retryAfterSeconds = 1

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError maps err onto its code's status and public body. Errors that
// are not *pkgerrors.Error surface as a generic internal error.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	if meta.Retryable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	if logg != nil {
		logRequestError(ctx, logg, err, meta.HTTPStatus)
	}
	writeJSON(w, meta.HTTPStatus, envelopeFor(typed, meta))
}

func envelopeFor(typed *pkgerrors.Error, meta pkgerrors.Metadata) types.ErrorEnvelope {
	env := types.ErrorEnvelope{
		Error:  meta.PublicMessage,
		Code:   string(typed.Code()),
		Reason: string(typed.Reason()),
	}
	// Internal and dependency messages may carry infrastructure detail.
	exposeMessage := typed.Code() != pkgerrors.CodeInternal && typed.Code() != pkgerrors.CodeDependency
	if msg := typed.Message(); exposeMessage && msg != "" {
		env.Error = msg
	}
	if meta.DetailsAllowed {
		env.Details = typed.Details()
	}
	return env
}

func logRequestError(ctx context.Context, logg *logger.Logger, err error, status int) {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
		"http_status": status,
	}
	if dump.Reason != "" {
		fields["error_reason"] = dump.Reason
	}
	if dump.PGCode != "" {
		fields["pg_code"] = dump.PGCode
		fields["pg_message"] = dump.PGMessage
		fields["pg_detail"] = dump.PGDetail
		fields["pg_table"] = dump.PGTable
		fields["pg_constraint"] = dump.PGConstraint
	}

	ctx = logg.WithFields(ctx, fields)
	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(ctx, "request.rejected")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Int("status", status).Msg("response.encode_failed")
	}
}

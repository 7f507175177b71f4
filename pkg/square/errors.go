package square

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const paymentMethodErrorCategory = "PAYMENT_METHOD_ERROR"

// mapError turns an SDK failure into a domain error. Card problems are
// declines; transport failures, throttling and 5xx are gateway errors.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := "square " + op + " failed"
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, msg).WithReason(pkgerrors.ReasonGatewayUnavailable)
	}

	code := codeForStatus(apiErr.StatusCode)
	for _, sqErr := range apiErrors(apiErr) {
		switch {
		case string(sqErr.Category) == paymentMethodErrorCategory || apiErr.StatusCode == http.StatusPaymentRequired:
			return pkgerrors.NewReason(pkgerrors.CodeConflict, pkgerrors.ReasonPaymentDeclined, "payment declined").
				WithDetails(map[string]any{"decline_reason": declineReason(sqErr)}).
				WithCause(err)
		case sqErr.Code == sq.ErrorCodeIdempotencyKeyReused:
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, msg)
		case sqErr.Category == sq.ErrorCategoryAuthenticationError:
			return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg)
		}
	}
	mapped := pkgerrors.Wrap(code, err, msg)
	if code == pkgerrors.CodeGateway {
		mapped = mapped.WithReason(pkgerrors.ReasonGatewayUnavailable)
	}
	return mapped
}

func declineReason(sqErr *sq.Error) string {
	if sqErr.Detail != nil && strings.TrimSpace(*sqErr.Detail) != "" {
		return *sqErr.Detail
	}
	return string(sqErr.Code)
}

// apiErrors decodes the {"errors": [...]} body the SDK keeps as the wrapped
// error's text.
func apiErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner.Error())), &body); err != nil {
		return nil
	}
	out := body.Errors[:0]
	for _, e := range body.Errors {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

var statusCodes = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeGateway,
}

func codeForStatus(status int) pkgerrors.Code {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeGateway
}

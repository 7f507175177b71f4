package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type addItemBody struct {
	VariantID string `json:"product_variant_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_variant_id":"nope","quantity":0}`))

	var body addItemBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid uuid", details["product_variant_id"])
	assert.Equal(t, "must be greater than 0", details["quantity"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":1,"extra":true}`))

	var body addItemBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRequiresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	var body addItemBody
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestParsePageDefaultsAndBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	page, err := ParsePage(req)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)

	req = httptest.NewRequest(http.MethodGet, "/orders?page=2&limit=500", nil)
	_, err = ParsePage(req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsOversizedAndTrailingInput(t *testing.T) {
	huge := `{"product_variant_id":"` + strings.Repeat("a", maxBodyBytes) + `","quantity":1}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))
	var body addItemBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.Equal(t, "request body too large", pkgerrors.As(err).Message())

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":1}{"quantity":2}`))
	err = DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

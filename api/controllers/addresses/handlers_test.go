package addresses

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

type stubAddressService struct {
	address.Service
	list      []models.Address
	lastInput address.CreateInput
	calls     int
}

func (s *stubAddressService) List(ctx context.Context, shopperID uuid.UUID) ([]models.Address, error) {
	return s.list, nil
}

func (s *stubAddressService) Create(ctx context.Context, shopperID uuid.UUID, input address.CreateInput) (*models.Address, error) {
	s.calls++
	s.lastInput = input
	return &models.Address{ID: uuid.New(), ShopperID: shopperID, FullName: input.FullName}, nil
}

func TestCreateTrimsAndReturnsCreated(t *testing.T) {
	svc := &stubAddressService{}
	body := `{"full_name":"  Ada Lovelace ","phone":"555","address_line1":"1 Main","city":"Springfield","state":"IL","postal_code":"62701","country":"US"}`
	req := httptest.NewRequest(http.MethodPost, "/addresses", strings.NewReader(body))
	req = req.WithContext(middleware.WithShopperID(req.Context(), uuid.New()))

	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, "Ada Lovelace", svc.lastInput.FullName)
	assert.Contains(t, resp.Body.String(), `"full_name":"Ada Lovelace"`)
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc := &stubAddressService{}
	req := httptest.NewRequest(http.MethodPost, "/addresses", strings.NewReader(`{"full_name":"Ada"}`))
	req = req.WithContext(middleware.WithShopperID(req.Context(), uuid.New()))

	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, 0, svc.calls)
	assert.Contains(t, resp.Body.String(), "address_line1")
}

func TestListReturnsViews(t *testing.T) {
	svc := &stubAddressService{list: []models.Address{{ID: uuid.New(), City: "Springfield", IsDefault: true}}}
	req := httptest.NewRequest(http.MethodGet, "/addresses", nil)
	req = req.WithContext(middleware.WithShopperID(req.Context(), uuid.New()))

	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"is_default":true`)
}

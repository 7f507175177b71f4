package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubCartService struct {
	cartsvc.Service
	view       *cartsvc.View
	err        error
	lastItem   uuid.UUID
	lastQty    int
	lastAdded  uuid.UUID
	removeHits int
}

func (s *stubCartService) Get(ctx context.Context, shopperID uuid.UUID) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s *stubCartService) Add(ctx context.Context, shopperID, variantID uuid.UUID, qty int) (*cartsvc.View, error) {
	s.lastAdded = variantID
	s.lastQty = qty
	return s.view, s.err
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, shopperID, itemID uuid.UUID, qty int) (*cartsvc.View, error) {
	s.lastItem = itemID
	s.lastQty = qty
	return s.view, s.err
}

func (s *stubCartService) Remove(ctx context.Context, shopperID, itemID uuid.UUID) (*cartsvc.View, error) {
	s.lastItem = itemID
	s.removeHits++
	return s.view, s.err
}

func newRouter(svc cartsvc.Service) http.Handler {
	r := chi.NewRouter()
	r.Get("/cart", Fetch(svc, nil))
	r.Post("/cart", AddItem(svc, nil))
	r.Put("/cart/{itemId}", UpdateItem(svc, nil))
	r.Delete("/cart/{itemId}", RemoveItem(svc, nil))
	return r
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithShopperID(req.Context(), uuid.New()))
}

func TestFetchReturnsCart(t *testing.T) {
	cartID := uuid.New()
	svc := &stubCartService{view: &cartsvc.View{ID: cartID}}

	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodGet, "/cart", nil)))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartsvc.View `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != cartID {
		t.Fatalf("unexpected cart id %s", envelope.Data.ID)
	}
}

func TestFetchRequiresShopper(t *testing.T) {
	resp := httptest.NewRecorder()
	newRouter(&stubCartService{}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/cart", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAddItemPassesVariantAndQuantity(t *testing.T) {
	svc := &stubCartService{view: &cartsvc.View{}}
	variant := uuid.New()
	body := `{"product_variant_id":"` + variant.String() + `","quantity":3}`

	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(body))))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastAdded != variant || svc.lastQty != 3 {
		t.Fatalf("unexpected call variant=%s qty=%d", svc.lastAdded, svc.lastQty)
	}
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	svc := &stubCartService{view: &cartsvc.View{}}
	body := `{"product_variant_id":"` + uuid.NewString() + `","quantity":0}`

	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(body))))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.lastAdded != uuid.Nil {
		t.Fatalf("service should not be called")
	}
}

func TestAddItemSurfacesOutOfStock(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.NewReason(pkgerrors.CodeConflict, pkgerrors.ReasonOutOfStock, "insufficient stock").
		WithDetails(map[string]any{"available": 1})}
	body := `{"product_variant_id":"` + uuid.NewString() + `","quantity":5}`

	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(body))))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope struct {
		Code   string `json:"code"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Code != "CONFLICT" || envelope.Reason != "OUT_OF_STOCK" {
		t.Fatalf("unexpected error envelope %+v", envelope)
	}
}

func TestUpdateItemReadsPathParam(t *testing.T) {
	svc := &stubCartService{view: &cartsvc.View{}}
	item := uuid.New()

	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPut, "/cart/"+item.String(), strings.NewReader(`{"quantity":2}`))))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastItem != item || svc.lastQty != 2 {
		t.Fatalf("unexpected call item=%s qty=%d", svc.lastItem, svc.lastQty)
	}
}

func TestRemoveItemRejectsMalformedID(t *testing.T) {
	svc := &stubCartService{view: &cartsvc.View{}}

	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodDelete, "/cart/not-a-uuid", nil)))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.removeHits != 0 {
		t.Fatalf("service should not be called")
	}
}

package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

type stubSuggester struct {
	query  string
	result []catalog.Suggestion
	err    error
}

func (s *stubSuggester) Suggest(ctx context.Context, raw string) ([]catalog.Suggestion, error) {
	s.query = raw
	return s.result, s.err
}

func TestSuggestionsTrimsQuery(t *testing.T) {
	svc := &stubSuggester{result: []catalog.Suggestion{{ProductID: uuid.New(), Name: "Trail Shoe", Price: money.FromCents(8999)}}}
	req := httptest.NewRequest(http.MethodGet, "/search/suggestions?q=%20tra%20", nil)
	resp := httptest.NewRecorder()

	Suggestions(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.query != "tra" {
		t.Fatalf("expected trimmed query, got %q", svc.query)
	}
	if !strings.Contains(resp.Body.String(), `"name":"Trail Shoe"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestSuggestionsDependencyFailure(t *testing.T) {
	svc := &stubSuggester{err: pkgerrors.New(pkgerrors.CodeDependency, "search products")}
	req := httptest.NewRequest(http.MethodGet, "/search/suggestions?q=shoe", nil)
	resp := httptest.NewRecorder()

	Suggestions(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

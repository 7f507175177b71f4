package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestHTTPFetcherDecodesEnvelope(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/suggestions", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"product_id":"6f1c2b1e-5d8a-4c7e-9a51-1f2e3d4c5b6a","name":"Shirt","price":{"cents":2500,"amount":"25.00"}}]}`))
	}))
	defer srv.Close()

	fetcher, err := NewHTTPFetcher(srv.URL + "/")
	require.NoError(t, err)

	got, err := fetcher.Suggest(context.Background(), "shi rt")
	require.NoError(t, err)
	assert.Equal(t, "shi rt", gotQuery)
	require.Len(t, got, 1)
	assert.Equal(t, "Shirt", got[0].Name)
	assert.Equal(t, int64(2500), got[0].Price.Cents)
}

func TestHTTPFetcherMapsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	fetcher, err := NewHTTPFetcher(srv.URL)
	require.NoError(t, err)

	_, err = fetcher.Suggest(context.Background(), "shirt")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNewHTTPFetcherRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPFetcher("  ")
	assert.ErrorIs(t, err, errBaseURLRequired)
}

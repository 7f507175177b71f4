package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	suggestionsPath             = "/search/suggestions"
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("search base url is required")

// Fetcher returns suggestions for one query. It must honour ctx cancellation.
type Fetcher interface {
	Suggest(ctx context.Context, query string) ([]catalog.Suggestion, error)
}

// HTTPFetcher calls the public suggestions endpoint of the storefront API.
type HTTPFetcher struct {
	httpClient *http.Client
	baseURL    string
}

// FetcherOption configures optional fetcher behavior.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// NewHTTPFetcher builds a fetcher against baseURL, e.g. "https://shop.example.com".
func NewHTTPFetcher(baseURL string, opts ...FetcherOption) (*HTTPFetcher, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	fetcher := &HTTPFetcher{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(fetcher)
		}
	}
	return fetcher, nil
}

func (f *HTTPFetcher) Suggest(ctx context.Context, query string) ([]catalog.Suggestion, error) {
	endpoint := f.baseURL + suggestionsPath + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build suggestions request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute suggestions request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "suggestions request failed")
	}

	var envelope struct {
		Data []catalog.Suggestion `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode suggestions response")
	}
	return envelope.Data, nil
}

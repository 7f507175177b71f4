package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	defaultSuggestionLimit = 8
	defaultSuggestionTTL   = 5 * time.Minute
	defaultMinQueryLength  = 2
	suggestionCacheScope   = "suggest"
)

// Suggestion is one product offered for a partial query.
type Suggestion struct {
	ProductID uuid.UUID    `json:"product_id"`
	Name      string       `json:"name"`
	Price     money.Amount `json:"price"`
}

type productSearcher interface {
	SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error)
}

type suggestionCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(scope, id string) string
}

// SuggestionConfig tunes the suggestion service; zero values use defaults.
type SuggestionConfig struct {
	Limit          int
	CacheTTL       time.Duration
	MinQueryLength int
}

// SuggestionService answers search-as-you-type queries.
type SuggestionService struct {
	repo   productSearcher
	cache  suggestionCache
	logg   *logger.Logger
	sfg    singleflight.Group
	limit  int
	ttl    time.Duration
	minLen int
}

// NewSuggestionService wires the searcher with an optional cache.
func NewSuggestionService(repo productSearcher, cache suggestionCache, logg *logger.Logger, cfg SuggestionConfig) (*SuggestionService, error) {
	if repo == nil {
		return nil, fmt.Errorf("product searcher required")
	}
	svc := &SuggestionService{
		repo:   repo,
		cache:  cache,
		logg:   logg,
		limit:  cfg.Limit,
		ttl:    cfg.CacheTTL,
		minLen: cfg.MinQueryLength,
	}
	if svc.limit <= 0 {
		svc.limit = defaultSuggestionLimit
	}
	if svc.ttl <= 0 {
		svc.ttl = defaultSuggestionTTL
	}
	if svc.minLen <= 0 {
		svc.minLen = defaultMinQueryLength
	}
	return svc, nil
}

// NormalizeQuery trims and lower-cases a raw query.
func NormalizeQuery(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// Suggest returns up to the configured number of products matching query.
// Queries shorter than the minimum length return an empty list.
func (s *SuggestionService) Suggest(ctx context.Context, raw string) ([]Suggestion, error) {
	query := NormalizeQuery(raw)
	if utf8.RuneCountInString(query) < s.minLen {
		return []Suggestion{}, nil
	}

	if cached, ok := s.fromCache(ctx, query); ok {
		return cached, nil
	}

	value, err, _ := s.sfg.Do(query, func() (any, error) {
		products, err := s.repo.SearchProducts(context.WithoutCancel(ctx), query, s.limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
		}
		result := make([]Suggestion, 0, len(products))
		for _, p := range products {
			result = append(result, Suggestion{
				ProductID: p.ID,
				Name:      p.Name,
				Price:     money.FromCents(p.BasePriceCents),
			})
		}
		s.store(ctx, query, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]Suggestion), nil
}

func (s *SuggestionService) fromCache(ctx context.Context, query string) ([]Suggestion, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(suggestionCacheScope, query))
	if err != nil {
		if !errors.Is(err, redis.Nil) && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "suggestions.cache_read_failed")
		}
		return nil, false
	}
	var cached []Suggestion
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, false
	}
	return cached, true
}

func (s *SuggestionService) store(ctx context.Context, query string, result []Suggestion) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(context.WithoutCancel(ctx), s.cache.CacheKey(suggestionCacheScope, query), payload, s.ttl); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "suggestions.cache_write_failed")
	}
}

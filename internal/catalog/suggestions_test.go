package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type countingSearcher struct {
	calls    atomic.Int32
	products []models.Product
	gate     chan struct{}
}

func (c *countingSearcher) SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if len(c.products) > limit {
		return c.products[:limit], nil
	}
	return c.products, nil
}

func newCache(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.FromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), mr
}

func TestSuggestShortQueryReturnsEmptyWithoutSearching(t *testing.T) {
	searcher := &countingSearcher{}
	svc, err := NewSuggestionService(searcher, nil, nil, SuggestionConfig{})
	require.NoError(t, err)

	got, err := svc.Suggest(context.Background(), " s ")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), searcher.calls.Load())
}

func TestSuggestCachesResults(t *testing.T) {
	cache, mr := newCache(t)
	searcher := &countingSearcher{products: []models.Product{{Name: "Shirt", BasePriceCents: 1999}}}
	svc, err := NewSuggestionService(searcher, cache, nil, SuggestionConfig{CacheTTL: time.Minute})
	require.NoError(t, err)

	first, err := svc.Suggest(context.Background(), "SHirt")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "19.99", first[0].Price.Display)

	second, err := svc.Suggest(context.Background(), "shirt")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), searcher.calls.Load())
	assert.True(t, mr.Exists("sf:cache:suggest:shirt"))

	mr.FastForward(2 * time.Minute)
	_, err = svc.Suggest(context.Background(), "shirt")
	require.NoError(t, err)
	assert.Equal(t, int32(2), searcher.calls.Load())
}

func TestSuggestCollapsesConcurrentMisses(t *testing.T) {
	searcher := &countingSearcher{
		products: []models.Product{{Name: "Shirt"}},
		gate:     make(chan struct{}),
	}
	svc, err := NewSuggestionService(searcher, nil, nil, SuggestionConfig{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Suggest(context.Background(), "shirt")
		}()
	}
	require.Eventually(t, func() bool { return searcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(searcher.gate)
	wg.Wait()
	assert.Equal(t, int32(1), searcher.calls.Load())
}

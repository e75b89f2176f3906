package autocomplete

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/example/ride-search/internal/observability"
)

// Cache sits in front of a Fetcher. Suggestion lists for city prefixes
// are small and change rarely, so even a short TTL removes most backend
// round trips.
type Cache interface {
	Get(ctx context.Context, query string) ([]City, bool)
	Set(ctx context.Context, query string, cities []City)
}

// LRUCache is the in-process default.
type LRUCache struct {
	inner *lru.Cache[string, []City]
}

func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, []City](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{inner: c}, nil
}

func (c *LRUCache) Get(_ context.Context, query string) ([]City, bool) {
	return c.inner.Get(normalize(query))
}

func (c *LRUCache) Set(_ context.Context, query string, cities []City) {
	c.inner.Add(normalize(query), cities)
}

// RedisCache shares suggestions across gateway instances with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, query string) ([]City, bool) {
	raw, err := c.client.Get(ctx, cacheKey(query)).Bytes()
	if err != nil {
		return nil, false
	}
	var cities []City
	if err := json.Unmarshal(raw, &cities); err != nil {
		return nil, false
	}
	return cities, true
}

func (c *RedisCache) Set(ctx context.Context, query string, cities []City) {
	raw, err := json.Marshal(cities)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(query), raw, c.ttl).Err()
}

func cacheKey(query string) string { return "cities:" + normalize(query) }

func normalize(query string) string { return strings.ToLower(strings.TrimSpace(query)) }

// CachedFetcher wraps a Fetcher with a Cache.
type CachedFetcher struct {
	Fetcher Fetcher
	Cache   Cache
}

func (c *CachedFetcher) FetchCities(ctx context.Context, query string, limit int) ([]City, error) {
	if cities, ok := c.Cache.Get(ctx, query); ok {
		observability.AutocompleteCacheHits.Inc()
		return cities, nil
	}
	cities, err := c.Fetcher.FetchCities(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	c.Cache.Set(ctx, query, cities)
	return cities, nil
}

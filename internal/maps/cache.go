package maps

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheTTL bounds how long a geocode result is reused. Geocodes are
// effectively static, but a short TTL keeps typos from sticking forever.
const cacheTTL = 24 * time.Hour

// Resolver is the geocoding capability the cache wraps.
type Resolver interface {
	Resolve(ctx context.Context, text string) ([]Place, error)
}

// CachingResolver memoizes geocode lookups in Redis. Users re-type the same
// home and office addresses every day; caching spares the Geocoding API quota.
type CachingResolver struct {
	inner Resolver
	redis *redis.Client
}

// NewCachingResolver wraps inner with a Redis-backed cache.
func NewCachingResolver(inner Resolver, client *redis.Client) *CachingResolver {
	return &CachingResolver{inner: inner, redis: client}
}

// NewRedis builds a Redis client for the given address.
func NewRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func cacheKey(text string) string {
	return "geocode:" + strings.ToLower(strings.TrimSpace(text))
}

// Resolve serves from cache when possible and falls through to the inner
// resolver otherwise. Cache failures degrade to a plain lookup.
func (c *CachingResolver) Resolve(ctx context.Context, text string) ([]Place, error) {
	key := cacheKey(text)

	if raw, err := c.redis.Get(ctx, key).Result(); err == nil {
		var places []Place
		if err := json.Unmarshal([]byte(raw), &places); err == nil {
			return places, nil
		}
	} else if err != redis.Nil {
		log.Printf("geocode cache read: %v", err)
	}

	places, err := c.inner.Resolve(ctx, text)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(places); err == nil {
		if err := c.redis.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
			log.Printf("geocode cache write: %v", err)
		}
	}
	return places, nil
}

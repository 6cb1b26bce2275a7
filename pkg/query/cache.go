// Cache is a thin JSON-over-go-redis result cache, grounded on the
// teacher's alert.RedisSubscriptionManager: same plain *redis.Client use,
// simplified from its Lua-scripted sorted-set index down to ordinary
// SET/GET/DEL since query caching here needs no atomic multi-key mutation,
// only point invalidation when the underlying Position/Item changes.
package query

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how stale a cached page may be even if its
// invalidation event is missed.
const DefaultTTL = 30 * time.Second

// Cache wraps a redis client for the Query Surface's read paths.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connects to addr and returns a Cache with the default TTL.
func NewCache(addr string) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    DefaultTTL,
	}
}

// get decodes the cached value at key into dst, reporting whether it was
// present. A cache-read error (including a miss) is treated as "not
// present" — query correctness never depends on the cache.
func get[T any](ctx context.Context, c *Cache, key string, dst *T) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func set[T any](ctx context.Context, c *Cache, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, data, c.ttl)
}

// Invalidate drops a single cached page, e.g. on a PositionUpdate/
// PositionDelete/ItemCreated event naming it.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.client.Del(ctx, key)
}

// Close releases the underlying redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

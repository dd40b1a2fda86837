// Package redisrepo holds the Redis-backed read cache, purchase rate limiter
// and HTTP idempotency store. Cache, SlidingWindowLimiter and
// IdempotencyStore treat a nil receiver as "Redis not configured".
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	redisx "github.com/kirinyoku/fairtix/internal/redis"
)

// Cache is a best-effort read-through cache of JSON summaries. The store
// stays authoritative: Redis failures fall back to the loader and
// invalidation runs after commit.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

// lookup decodes the entry under key into out. Unreadable and corrupt
// entries count as misses.
func (c *Cache) lookup(ctx context.Context, key string, out any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *Cache) store(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, key, string(b), ttl).Err()
}

// GetOrSetJSON returns the cached value under key or loads, caches and
// returns it. Concurrent misses on one key share a single load. Loader
// errors are returned and never cached.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if c == nil {
		return loader(ctx)
	}

	var hit T
	if c.lookup(ctx, key, &hit) {
		return hit, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		var again T
		if c.lookup(ctx, key, &again) {
			return again, nil
		}

		loaded, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, loaded, ttl)
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache %q: unexpected %T", key, v)
	}

	return out, nil
}

// Invalidate drops keys. Unlike reads, failures are reported so callers can
// log a possibly stale summary.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redisrepo.Cache.Invalidate:%w", err)
	}
	return nil
}

func (c *Cache) InvalidateEvent(ctx context.Context, eventID int64) error {
	return c.Invalidate(ctx, redisx.KeyEventSummary(eventID))
}

func (c *Cache) InvalidateLottery(ctx context.Context, lotteryID int64) error {
	return c.Invalidate(ctx, redisx.KeyLotterySummary(lotteryID))
}

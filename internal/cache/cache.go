// Package cache memoises analytics results in Redis. Keys embed a freshness
// token so that bumping the token invalidates every entry at once.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/angelmondragon/stockcast/pkg/logger"
	"github.com/angelmondragon/stockcast/pkg/redis"
)

const (
	datasetTransactions = "transactions"
	defaultTTL          = 10 * time.Minute
)

type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	CacheKey(parts ...string) string
	FreshnessKey(dataset string) string
}

// Cache is safe to use with a nil store, in which case every lookup misses
// and nothing is written.
type Cache struct {
	store store
	ttl   time.Duration
	logg  *logger.Logger
}

func New(s store, ttl time.Duration, logg *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Cache{store: s, ttl: ttl, logg: logg}
}

// Disabled returns a cache that never stores anything.
func Disabled() *Cache {
	return New(nil, 0, nil)
}

// Enabled reports whether a backing store is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.store != nil
}

// Token returns the current freshness token. A missing token is zero.
func (c *Cache) Token(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	raw, err := c.store.Get(ctx, c.store.FreshnessKey(datasetTransactions))
	if err != nil {
		if redis.IsNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read freshness token: %w", err)
	}
	token, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse freshness token %q: %w", raw, err)
	}
	return token, nil
}

// Invalidate bumps the freshness token and returns the new value.
func (c *Cache) Invalidate(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	token, err := c.store.Incr(ctx, c.store.FreshnessKey(datasetTransactions))
	if err != nil {
		return 0, fmt.Errorf("bump freshness token: %w", err)
	}
	return token, nil
}

// Fetch returns the cached value under parts, computing and storing it on a
// miss. Redis errors are logged and fall through to compute.
func Fetch[T any](ctx context.Context, c *Cache, parts []string, compute func(context.Context) (T, error)) (T, error) {
	if !c.Enabled() {
		return compute(ctx)
	}

	token, err := c.Token(ctx)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "cache token unavailable; computing directly")
		return compute(ctx)
	}
	key := c.store.CacheKey(append([]string{"v" + strconv.FormatInt(token, 10)}, parts...)...)

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return cached, nil
		}
		c.logg.Warn(c.logg.WithField(ctx, "cache_key", key), "discarding undecodable cache entry")
	case !redis.IsNil(err):
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"cache_key": key, "error": err.Error()}), "cache read failed")
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "cache_key", key), "cache value not serialisable")
		return value, nil
	}
	if err := c.store.Set(ctx, key, string(payload), c.ttl); err != nil {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"cache_key": key, "error": err.Error()}), "cache write failed")
	}
	return value, nil
}

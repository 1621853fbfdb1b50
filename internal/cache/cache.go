// Package cache memoizes expensive provider results in the research_cache table.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	"go.uber.org/zap"
)

// Cache is a TTL cache of T values keyed by a normalized business key.
// Entries older than the TTL are recomputed and overwritten.
type Cache[T any] struct {
	store store.ResearchCache
	ttl   time.Duration
	now   func() time.Time
}

// New returns a cache over s. A nil now defaults to time.Now.
func New[T any](s store.ResearchCache, ttl time.Duration, now func() time.Time) *Cache[T] {
	if now == nil {
		now = time.Now
	}
	return &Cache[T]{store: s, ttl: ttl, now: now}
}

// GetOrCompute returns the fresh cached value for key, or calls compute and
// stores its result. Cache read and write failures never fail the call.
func (c *Cache[T]) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (T, error)) (T, error) {
	k := domain.NormalizeKey(key)
	if k == "" {
		return compute(ctx)
	}

	if v, ok := c.lookup(ctx, k); ok {
		return v, nil
	}

	v, err := compute(ctx)
	if err != nil {
		return v, err
	}

	c.put(ctx, k, v)
	return v, nil
}

func (c *Cache[T]) put(ctx context.Context, key string, v T) {
	payload, err := json.Marshal(v)
	if err != nil {
		zap.S().Named("cache").Warnw("cannot encode cache value", "key", key, "error", err)
		return
	}
	if err := c.store.Put(ctx, model.ResearchCacheEntry{Key: key, Value: payload, CreatedAt: c.now()}); err != nil {
		zap.S().Named("cache").Warnw("cache write failed", "key", key, "error", err)
	}
}

func (c *Cache[T]) lookup(ctx context.Context, key string) (T, bool) {
	var v T

	entry, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			zap.S().Named("cache").Warnw("cache read failed", "key", key, "error", err)
		}
		return v, false
	}
	if !entry.Fresh(c.now(), c.ttl) {
		return v, false
	}
	if err := json.Unmarshal(entry.Value, &v); err != nil {
		zap.S().Named("cache").Warnw("dropping unreadable cache entry", "key", key, "error", err)
		return v, false
	}
	return v, true
}

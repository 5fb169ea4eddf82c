package earnings

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/warp/shift-engine/generic"
)

// CachedConfig is a ConfigSource that keeps active rates, tier sets and goals
// for TTL. Settlement reads configuration several times per shift; admin
// writes call Invalidate so edits are visible on the next settlement.
//
// Misses (generic.ErrNotFound) are cached too.
type CachedConfig struct {
	Source ConfigSource
	cache  *cache.Cache
}

func NewCachedConfig(source ConfigSource, ttl time.Duration) *CachedConfig {
	return &CachedConfig{Source: source, cache: cache.New(ttl, 2*ttl)}
}

type cached[T any] struct {
	value T
	err   error
}

func lookup[T any](c *cache.Cache, key string, load func() (T, error)) (T, error) {
	if v, found := c.Get(key); found {
		if hit, ok := v.(cached[T]); ok {
			return hit.value, hit.err
		}
	}
	value, err := load()
	if err == nil || generic.IsNotFound(err) {
		c.SetDefault(key, cached[T]{value: value, err: err})
	}
	return value, err
}

func (c *CachedConfig) ActiveHourlyRate(ctx context.Context) (HourlyRate, error) {
	return lookup(c.cache, "rate", func() (HourlyRate, error) {
		return c.Source.ActiveHourlyRate(ctx)
	})
}

func (c *CachedConfig) ActiveTierSet(ctx context.Context, scope generic.TierScope, shiftKind string) (generic.TierSet, error) {
	return lookup(c.cache, "tiers:"+string(scope)+":"+shiftKind, func() (generic.TierSet, error) {
		return c.Source.ActiveTierSet(ctx, scope, shiftKind)
	})
}

func (c *CachedConfig) ActiveGoals(ctx context.Context, role string) ([]Goal, error) {
	return lookup(c.cache, "goals:"+role, func() ([]Goal, error) {
		return c.Source.ActiveGoals(ctx, role)
	})
}

// Invalidate drops every cached value.
func (c *CachedConfig) Invalidate() {
	c.cache.Flush()
}

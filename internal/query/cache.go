package query

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cache wraps a Fetcher with in-flight de-duplication and an expiring LRU
// of successful results. Errors are never cached.
//
// A shared in-flight request runs detached from any single caller's
// context; a caller that gives up gets ctx.Err() while the request finishes
// and fills the cache for the next caller.
type Cache[T any] struct {
	fetch Fetcher[T]
	lru   *expirable.LRU[string, T]
	group singleflight.Group
}

// NewCache creates a cache holding up to size results for ttl each.
func NewCache[T any](fetch Fetcher[T], size int, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		fetch: fetch,
		lru:   expirable.NewLRU[string, T](size, nil, ttl),
	}
}

// Fetch returns the cached result for key or loads it.
func (c *Cache[T]) Fetch(ctx context.Context, key string) (T, error) {
	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}
	return c.load(ctx, key)
}

// Refresh loads key, bypassing and then updating the cache.
func (c *Cache[T]) Refresh(ctx context.Context, key string) (T, error) {
	return c.load(ctx, key)
}

// Purge drops every cached result.
func (c *Cache[T]) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached results.
func (c *Cache[T]) Len() int {
	return c.lru.Len()
}

func (c *Cache[T]) load(ctx context.Context, key string) (T, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		v, err := c.fetch(context.WithoutCancel(ctx), key)
		if err != nil {
			return v, err
		}
		c.lru.Add(key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		v, _ := res.Val.(T)
		return v, res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

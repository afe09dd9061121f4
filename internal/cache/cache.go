// Package cache provides a small single-value TTL cache used to memoize
// expensive lookups such as bucket discovery and checkpoint summaries.
package cache

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Opts tunes staleness behavior.
type Opts struct {
	// ReturnLastGood serves the previous value when a refresh fails,
	// instead of surfacing the error.
	ReturnLastGood bool

	// NoWait serves a stale value immediately (up to twice the TTL old)
	// and refreshes in the background.
	NoWait bool
}

// Cache memoizes a single value of type T produced by an update function.
// The zero value is not usable; construct with New.
type Cache[T any] struct {
	update func(ctx context.Context) (T, error)
	ttl    time.Duration
	opts   Opts

	mu         sync.Mutex
	val        T
	lastGood   T
	hasGood    bool
	updatedAt  time.Time
	refreshing bool
}

// New builds a cache around the update function. Values older than ttl are
// refreshed on access.
func New[T any](ttl time.Duration, opts Opts, update func(ctx context.Context) (T, error)) *Cache[T] {
	return &Cache[T]{
		update: update,
		ttl:    ttl,
		opts:   opts,
	}
}

// Get returns the cached value, refreshing it when expired. With NoWait set,
// a value younger than twice the TTL is served immediately while a background
// refresh runs.
func (c *Cache[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()

	age := time.Since(c.updatedAt)
	if !c.updatedAt.IsZero() && age < c.ttl {
		v := c.val
		c.mu.Unlock()
		return v, nil
	}

	if c.opts.NoWait && !c.updatedAt.IsZero() && age < 2*c.ttl {
		v := c.val
		if !c.refreshing {
			c.refreshing = true
			go c.refreshBackground()
		}
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	return c.refresh(ctx)
}

func (c *Cache[T]) refresh(ctx context.Context) (T, error) {
	v, err := c.update(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if c.opts.ReturnLastGood && c.hasGood {
			log.Warnf("cache: refresh failed, serving last good value: %v", err)
			return c.lastGood, nil
		}
		var zero T
		return zero, err
	}
	c.val = v
	c.lastGood = v
	c.hasGood = true
	c.updatedAt = time.Now()
	return v, nil
}

func (c *Cache[T]) refreshBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), c.ttl)
	defer cancel()
	if _, err := c.refresh(ctx); err != nil {
		log.Warnf("cache: background refresh failed: %v", err)
	}
	c.mu.Lock()
	c.refreshing = false
	c.mu.Unlock()
}

// InvalidateAll drops the cached value so the next Get refreshes.
func (c *Cache[T]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updatedAt = time.Time{}
}

package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache holds the last known value per key, in the manner of a
// stale-while-revalidate view cache. Use one Cache per value type.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
	flight  singleflight.Group
}

func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]T)}
}

// Peek returns the cached value for key without fetching.
func (c *Cache[T]) Peek(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache[T]) set(key string, v T) {
	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
}

func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Get returns the cached value, fetching it on a miss. Concurrent misses for
// the same key share one fetch, which runs with the first caller's context.
func (c *Cache[T]) Get(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Peek(key); ok {
		return v, nil
	}
	return c.Revalidate(ctx, key, fetch)
}

// Revalidate fetches key regardless of what is cached and stores the result.
func (c *Cache[T]) Revalidate(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	v, err, _ := c.flight.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		c.set(key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Mutate shows optimistic(current) under key while do runs. If do fails the
// optimistic value is discarded and key is refetched from the server, so the
// cache ends up holding what the server has rather than what it had before.
func (c *Cache[T]) Mutate(ctx context.Context, key string, optimistic func(current T) T, do func(context.Context) error, fetch func(context.Context) (T, error)) error {
	c.mu.Lock()
	c.entries[key] = optimistic(c.entries[key])
	c.mu.Unlock()

	err := do(ctx)
	if err == nil {
		return nil
	}

	c.Invalidate(key)
	if _, ferr := c.Revalidate(ctx, key, fetch); ferr != nil {
		return errors.Join(err, fmt.Errorf("refetch %s: %w", key, ferr))
	}
	return err
}

// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Flight wraps a Cache with a single-flight fill guarantee: concurrent
// GetOrFill calls for the same missing key invoke the filler exactly once
// and all callers receive the produced value (or the same failure).
type Flight struct {
	cache Cache
	group singleflight.Group
}

// NewFlight creates a single-flight wrapper around c.
func NewFlight(c Cache) *Flight {
	return &Flight{cache: c}
}

// Cache returns the underlying cache.
func (f *Flight) Cache() Cache {
	return f.cache
}

// GetOrFill returns the cached value for key, or runs fill once across all
// concurrent callers and caches its result with ttl. A failed fill leaves the
// key absent so subsequent calls retry. Waiters observe ctx cancellation
// without aborting the in-progress fill; a fill that completes after the
// caller has gone still populates the cache for the next request.
func (f *Flight) GetOrFill(ctx context.Context, key string, ttl time.Duration, fill func(context.Context) (any, error)) (any, error) {
	if v, ok := f.cache.Get(key); ok {
		return v, nil
	}

	ch := f.group.DoChan(key, func() (any, error) {
		// Re-check under the flight: a concurrent fill may have landed
		// between the miss above and this callback running.
		if v, ok := f.cache.Get(key); ok {
			return v, nil
		}
		v, err := fill(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		f.cache.Set(key, v, ttl)
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

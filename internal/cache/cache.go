// Package cache provides small key/value caches with expiry.
package cache

import (
	"context"
	"time"
)

// Cache stores values for a bounded time. Implementations are safe for
// concurrent use.
type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V)
	Delete(ctx context.Context, key K)
}

// Clock returns the current time
type Clock func() time.Time

// SystemClock is the wall clock
func SystemClock() time.Time {
	return time.Now()
}

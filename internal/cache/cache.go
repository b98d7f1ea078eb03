// Package cache holds the short-lived idempotency reservations that absorb
// client double-submits before the store is even consulted.
package cache

import (
	"context"
	"time"
)

// IdempotencyCache reserves a key for the duration of the idempotency
// window. Reserve returns false when the key is already held, signalling a
// probable duplicate submission.
type IdempotencyCache interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

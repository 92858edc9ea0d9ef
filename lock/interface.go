// Package lock provides lock backends for the guard: an in-process table,
// Redis, a Redis/local hybrid, etcd, NATS JetStream key-value and SQL
// advisory locks.
package lock

import (
	"context"
	"time"
)

// Locker provides lock functionality keyed by an opaque string.
// It is satisfied by every backend in this package and matches guard.Backend.
type Locker interface {
	// Acquire obtains the lock for key.
	// A zero timeout makes a single immediate attempt; a positive timeout
	// retries until it elapses. Returns false if the lock is held elsewhere.
	Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error)

	// Release frees the lock for key.
	// Returns false if this locker does not hold it.
	Release(ctx context.Context, key string) (bool, error)
}

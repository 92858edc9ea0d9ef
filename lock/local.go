package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker provides local lock functionality using sync.Mutex
// Suitable for single-machine deployment scenarios, does not support distributed environments
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]bool
}

// NewLocalLocker creates a new local lock instance
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		locks: make(map[string]bool),
	}
}

// Acquire acquires a local lock
// Returns true if the lock was successfully acquired, false if the lock is already held
func (l *LocalLocker) Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	return acquireWithin(ctx, timeout, func(context.Context) (bool, error) {
		return l.tryLock(key), nil
	})
}

func (l *LocalLocker) tryLock(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locks[key] {
		return false
	}
	l.locks[key] = true
	return true
}

// Release releases a local lock
// Returns false if the lock was not held
func (l *LocalLocker) Release(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locks[key] {
		return false, nil
	}
	delete(l.locks, key)
	return true, nil
}

// Package testutil provides in-memory doubles for exercising guards and lock
// backends in tests.
package testutil

import (
	"context"
	"sync"
	"time"
)

// AcquireCall records one Backend.Acquire invocation
type AcquireCall struct {
	Key     string
	Timeout time.Duration
}

// Backend is a recording lock backend. By default it behaves like a local
// lock table; its answers can be overridden to simulate failures.
type Backend struct {
	mu       sync.Mutex
	held     map[string]bool
	acquires []AcquireCall
	releases []string

	acquireErr error
	releaseErr error
}

// NewBackend creates an empty recording backend
func NewBackend() *Backend {
	return &Backend{held: make(map[string]bool)}
}

// Hold marks key as held by someone else
func (b *Backend) Hold(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held[key] = true
}

// IsHeld reports whether key is currently held
func (b *Backend) IsHeld(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held[key]
}

// SetAcquireError makes every Acquire fail with err (nil restores normal behavior)
func (b *Backend) SetAcquireError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acquireErr = err
}

// SetReleaseError makes every Release fail with err (nil restores normal behavior)
func (b *Backend) SetReleaseError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseErr = err
}

// Acquire takes key if it is free. The timeout is recorded but never waited on.
func (b *Backend) Acquire(_ context.Context, key string, timeout time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acquires = append(b.acquires, AcquireCall{Key: key, Timeout: timeout})
	if b.acquireErr != nil {
		return false, b.acquireErr
	}
	if b.held[key] {
		return false, nil
	}
	b.held[key] = true
	return true, nil
}

// Release frees key, reporting false if it was not held
func (b *Backend) Release(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releases = append(b.releases, key)
	if b.releaseErr != nil {
		return false, b.releaseErr
	}
	if !b.held[key] {
		return false, nil
	}
	delete(b.held, key)
	return true, nil
}

// Acquires returns a copy of the recorded Acquire calls
func (b *Backend) Acquires() []AcquireCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]AcquireCall(nil), b.acquires...)
}

// Releases returns a copy of the keys passed to Release
func (b *Backend) Releases() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.releases...)
}

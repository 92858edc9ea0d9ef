package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const (
	// DefaultEtcdPrefix namespaces lock keys in etcd
	DefaultEtcdPrefix = "/actionguard/locks/"

	// DefaultEtcdSessionTTL is the lease TTL in seconds; locks of a crashed
	// process disappear after it
	DefaultEtcdSessionTTL = 15
)

// EtcdLocker provides etcd-based distributed locks. All locks share one
// session lease, kept alive while the locker is open.
type EtcdLocker struct {
	session *concurrency.Session
	prefix  string

	mu   sync.Mutex
	held map[string]*concurrency.Mutex
}

// NewEtcdLocker opens a session on client. ttl is the session lease in
// seconds (default: DefaultEtcdSessionTTL).
func NewEtcdLocker(client *clientv3.Client, prefix string, ttl int) (*EtcdLocker, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if prefix == "" {
		prefix = DefaultEtcdPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if ttl <= 0 {
		ttl = DefaultEtcdSessionTTL
	}

	session, err := concurrency.NewSession(client, concurrency.WithTTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to open etcd session: %w", err)
	}
	return &EtcdLocker{
		session: session,
		prefix:  prefix,
		held:    make(map[string]*concurrency.Mutex),
	}, nil
}

func (l *EtcdLocker) lockName(key string) string {
	return l.prefix + key
}

// Acquire obtains the etcd mutex for key
func (l *EtcdLocker) Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	return acquireWithin(ctx, timeout, func(ctx context.Context) (bool, error) {
		return l.tryLock(ctx, key)
	})
}

func (l *EtcdLocker) tryLock(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// mutexes of one session are re-entrant, so ownership is checked here
	if _, ok := l.held[key]; ok {
		return false, nil
	}

	m := concurrency.NewMutex(l.session, l.lockName(key))
	if err := m.TryLock(ctx); err != nil {
		if errors.Is(err, concurrency.ErrLocked) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.held[key] = m
	return true, nil
}

// Release unlocks the etcd mutex for key
func (l *EtcdLocker) Release(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.held[key]
	if !ok {
		return false, nil
	}
	if err := m.Unlock(ctx); err != nil {
		return false, fmt.Errorf("failed to release lock: %w", err)
	}
	delete(l.held, key)
	return true, nil
}

// Close revokes the session lease, dropping every lock still held
func (l *EtcdLocker) Close() error {
	l.mu.Lock()
	l.held = make(map[string]*concurrency.Mutex)
	l.mu.Unlock()
	return l.session.Close()
}

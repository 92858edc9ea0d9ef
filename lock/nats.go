package lock

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
)

// DefaultNATSBucket is the key-value bucket holding lock entries
const DefaultNATSBucket = "actionguard_locks"

// NATSLocker provides locks on a NATS JetStream key-value bucket. Create is
// atomic, so only one holder can write a key; releases are checked against
// the revision that was written.
type NATSLocker struct {
	kv nats.KeyValue

	mu        sync.Mutex
	revisions map[string]uint64
}

// NewNATSLocker binds to bucket, creating it when missing. lockTime bounds
// how long an entry survives a crashed holder (0: forever).
func NewNATSLocker(js nats.JetStreamContext, bucket string, lockTime time.Duration) (*NATSLocker, error) {
	if js == nil {
		return nil, ErrNilClient
	}
	if bucket == "" {
		bucket = DefaultNATSBucket
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:  bucket,
			History: 1,
			TTL:     lockTime,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open lock bucket %q: %w", bucket, err)
	}
	return &NATSLocker{kv: kv, revisions: make(map[string]uint64)}, nil
}

// entryKey maps an arbitrary lock key onto the key-value key alphabet
func entryKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// Acquire creates the entry for key
func (l *NATSLocker) Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	return acquireWithin(ctx, timeout, func(context.Context) (bool, error) {
		return l.tryCreate(key)
	})
}

func (l *NATSLocker) tryCreate(key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.revisions[key]; ok {
		return false, nil
	}

	rev, err := l.kv.Create(entryKey(key), []byte(uuid.NewString()))
	if err != nil {
		if errors.Is(err, nats.ErrKeyExists) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.revisions[key] = rev
	return true, nil
}

// Release deletes the entry for key if it is still the one we created
func (l *NATSLocker) Release(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rev, ok := l.revisions[key]
	if !ok {
		return false, nil
	}

	err := l.kv.Delete(entryKey(key), nats.LastRevision(rev))
	switch {
	case err == nil:
		delete(l.revisions, key)
		return true, nil
	case errors.Is(err, nats.ErrKeyExists):
		// the entry expired and was taken over
		delete(l.revisions, key)
		return false, ErrLockValueMismatch
	default:
		return false, fmt.Errorf("failed to release lock: %w", err)
	}
}

package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/soulteary/action-guard/utils"
)

const (
	// DefaultLockTime is the default lock expiration time (15 seconds)
	DefaultLockTime = 15 * time.Second

	// DefaultOperationTimeout is the default timeout for lock operations (5 seconds)
	DefaultOperationTimeout = utils.DefaultOperationTimeout
)

// releaseScript only deletes the key when it still carries our lock value,
// preventing accidental release of another process's lock
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker provides Redis-based distributed lock functionality
type RedisLocker struct {
	client    redis.UniversalClient
	lockTime  time.Duration
	lockStore sync.Map // Stores key -> lockValue mapping
}

// NewRedisLocker creates a new Redis-based distributed locker
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return NewRedisLockerWithLockTime(client, DefaultLockTime)
}

// NewRedisLockerWithLockTime creates a new Redis-based distributed locker with custom lock time
func NewRedisLockerWithLockTime(client redis.UniversalClient, lockTime time.Duration) *RedisLocker {
	if lockTime <= 0 {
		lockTime = DefaultLockTime
	}
	return &RedisLocker{
		client:   client,
		lockTime: lockTime,
	}
}

// Acquire acquires a distributed lock using Redis SET NX
// Returns true if the lock was successfully acquired, false if the lock is already held
func (r *RedisLocker) Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	if r.client == nil {
		return false, ErrNilClient
	}
	if key == "" {
		return false, ErrEmptyKey
	}
	// a key this locker already holds must not be handed out twice
	if _, held := r.lockStore.Load(key); held {
		return false, nil
	}
	return acquireWithin(ctx, timeout, func(ctx context.Context) (bool, error) {
		return r.trySet(ctx, key)
	})
}

func (r *RedisLocker) trySet(ctx context.Context, key string) (bool, error) {
	lockValue := uuid.NewString()

	ctx, cancel := utils.WithTimeout(ctx, DefaultOperationTimeout)
	defer cancel()

	res, err := r.client.SetNX(ctx, key, lockValue, r.lockTime).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if res {
		// Store lockValue for subsequent release verification
		r.lockStore.Store(key, lockValue)
	}

	return res, nil
}

// Release releases a distributed lock using a Lua script to ensure atomicity
// Returns false if this locker never acquired key
func (r *RedisLocker) Release(ctx context.Context, key string) (bool, error) {
	if r.client == nil {
		return false, ErrNilClient
	}

	value, ok := r.lockStore.Load(key)
	if !ok {
		return false, nil
	}

	lockValue, ok := value.(string)
	if !ok {
		r.lockStore.Delete(key)
		return false, ErrLockValueType
	}

	ctx, cancel := utils.WithTimeout(ctx, DefaultOperationTimeout)
	defer cancel()

	result, err := releaseScript.Run(ctx, r.client, []string{key}, lockValue).Int64()
	if err != nil {
		// keep the value so a later release can retry
		return false, fmt.Errorf("failed to release lock: %w", err)
	}
	r.lockStore.Delete(key)

	if result == 0 {
		return false, ErrLockValueMismatch
	}
	return true, nil
}

// HybridLocker provides distributed lock functionality with automatic fallback to local lock
// If Redis is unavailable or operations fail, it automatically falls back to local lock
type HybridLocker struct {
	redisLocker *RedisLocker
	localLocker *LocalLocker
}

// NewHybridLocker creates a new hybrid locker that supports both Redis and local locking
// If client is nil, it will only use local locking
func NewHybridLocker(client redis.UniversalClient) *HybridLocker {
	hl := &HybridLocker{
		localLocker: NewLocalLocker(),
	}

	if client != nil {
		hl.redisLocker = NewRedisLocker(client)
	}

	return hl
}

// Acquire acquires a lock, trying Redis first and falling back to local lock if Redis fails
func (h *HybridLocker) Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	if h.redisLocker != nil {
		success, err := h.redisLocker.Acquire(ctx, key, timeout)
		if err == nil || errors.Is(err, ErrEmptyKey) {
			return success, err
		}
		// If Redis fails, fall back to local lock
	}

	return h.localLocker.Acquire(ctx, key, timeout)
}

// Release releases a lock, trying Redis first and falling back to local lock
func (h *HybridLocker) Release(ctx context.Context, key string) (bool, error) {
	if h.redisLocker != nil {
		released, err := h.redisLocker.Release(ctx, key)
		if released {
			return true, nil
		}
		// A mismatched or corrupted Redis lock was ours and is gone; the
		// local table cannot hold it too.
		if errors.Is(err, ErrLockValueMismatch) || errors.Is(err, ErrLockValueType) {
			return false, err
		}
		// Not held in Redis, or Redis is unreachable: the lock may have
		// been taken locally during an outage.
		if localReleased, _ := h.localLocker.Release(ctx, key); localReleased {
			return true, nil
		}
		return false, err
	}

	return h.localLocker.Release(ctx, key)
}

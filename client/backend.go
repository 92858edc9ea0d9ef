package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/soulteary/action-guard/lock"
)

// Backend is an opened lock backend with its connection
type Backend struct {
	// Driver is the driver the backend was opened with
	Driver string
	// Locker is nil for DriverNone, which disables locking
	Locker lock.Locker

	ping    PingFunc
	closers []func() error
}

// Open connects the backend selected by cfg.Driver
func Open(cfg Config) (*Backend, error) {
	b := &Backend{Driver: cfg.Driver}
	if b.Driver == "" {
		b.Driver = DriverLocal
	}

	switch b.Driver {
	case DriverNone:
		b.ping = func(context.Context) error { return nil }

	case DriverLocal:
		b.Locker = lock.NewLocalLocker()
		b.ping = func(context.Context) error { return nil }

	case DriverRedis:
		client, err := NewRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		b.Locker = lock.NewRedisLockerWithLockTime(client, cfg.Redis.LockTime)
		b.ping = PingRedis(client)
		b.closers = append(b.closers, client.Close)

	case DriverHybrid:
		// an unreachable Redis is tolerated; locks fall back to the process
		client := redis.NewClient(redisOptions(cfg.Redis))
		b.Locker = lock.NewHybridLocker(client)
		b.ping = PingRedis(client)
		b.closers = append(b.closers, client.Close)

	case DriverEtcd:
		client, err := NewEtcd(cfg.Etcd)
		if err != nil {
			return nil, err
		}
		locker, err := lock.NewEtcdLocker(client, cfg.Etcd.Prefix, cfg.Etcd.SessionTTL)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		b.Locker = locker
		b.ping = PingEtcd(client)
		b.closers = append(b.closers, locker.Close, client.Close)

	case DriverNATS:
		conn, js, err := NewNATS(cfg.NATS)
		if err != nil {
			return nil, err
		}
		locker, err := lock.NewNATSLocker(js, cfg.NATS.Bucket, cfg.NATS.LockTime)
		if err != nil {
			conn.Close()
			return nil, err
		}
		b.Locker = locker
		b.ping = PingNATS(conn)
		b.closers = append(b.closers, func() error { conn.Close(); return nil })

	case DriverMySQL, DriverPostgres:
		db, err := NewSQL(b.Driver, cfg.SQL)
		if err != nil {
			return nil, err
		}
		if err := b.attachSQL(db); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown lock driver %q", b.Driver)
	}

	return b, nil
}

// attachSQL puts an advisory locker on db. The pool is closed when the
// locker cannot be built.
func (b *Backend) attachSQL(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	locker, err := lock.NewSQLLocker(db)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	b.Locker = locker
	b.ping = PingSQL(db)
	b.closers = append(b.closers, locker.Close, sqlDB.Close)
	return nil
}

// Health pings the backend connection
func (b *Backend) Health(ctx context.Context) HealthStatus {
	return CheckHealth(ctx, b.Driver, b.ping)
}

// Close releases the backend's locks and connections
func (b *Backend) Close() error {
	var errs []error
	for _, closer := range b.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

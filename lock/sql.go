package lock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/soulteary/action-guard/utils"
)

// sqlDialect holds the advisory lock statements of one database. Both return
// 1 on success.
type sqlDialect struct {
	name    string
	lock    string
	unlock  string
	maxName int
}

var (
	mysqlDialect = sqlDialect{
		name:    "mysql",
		lock:    "SELECT GET_LOCK(?, 0)",
		unlock:  "SELECT RELEASE_LOCK(?)",
		maxName: 64,
	}
	postgresDialect = sqlDialect{
		name:   "postgres",
		lock:   "SELECT pg_try_advisory_lock(hashtext(?))::int",
		unlock: "SELECT pg_advisory_unlock(hashtext(?))::int",
	}
)

// ErrUnsupportedDialect is returned for databases without advisory locks
var ErrUnsupportedDialect = errors.New("sql dialect has no advisory locks")

func dialectFor(name string) (sqlDialect, error) {
	switch name {
	case "mysql":
		return mysqlDialect, nil
	case "postgres", "pgx":
		return postgresDialect, nil
	default:
		return sqlDialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDialect, name)
	}
}

// SQLLocker provides locks on MySQL named locks or PostgreSQL advisory locks.
// Those locks belong to a database session, so every held key pins its own
// pooled connection until released.
type SQLLocker struct {
	db      *gorm.DB
	dialect sqlDialect

	mu    sync.Mutex
	conns map[string]*sql.Conn
}

// NewSQLLocker creates a locker on db. The dialect is taken from db's driver.
func NewSQLLocker(db *gorm.DB) (*SQLLocker, error) {
	if db == nil {
		return nil, ErrNilClient
	}
	dialect, err := dialectFor(db.Dialector.Name())
	if err != nil {
		return nil, err
	}
	return &SQLLocker{
		db:      db,
		dialect: dialect,
		conns:   make(map[string]*sql.Conn),
	}, nil
}

// Acquire takes the advisory lock for key on a dedicated connection
func (l *SQLLocker) Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	if l.dialect.maxName > 0 && utils.KeyLength(key) > l.dialect.maxName {
		return false, fmt.Errorf("lock name longer than %d characters", l.dialect.maxName)
	}
	return acquireWithin(ctx, timeout, func(ctx context.Context) (bool, error) {
		return l.tryLock(ctx, key)
	})
}

func (l *SQLLocker) tryLock(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// advisory locks are re-entrant per session
	if _, ok := l.conns[key]; ok {
		return false, nil
	}

	sqlDB, err := l.db.DB()
	if err != nil {
		return false, fmt.Errorf("failed to get database handle: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	got, err := l.query(ctx, conn, l.dialect.lock, key)
	if err != nil {
		// the session may hold the lock without us knowing
		discard(conn)
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !got {
		_ = conn.Close()
		return false, nil
	}
	l.conns[key] = conn
	return true, nil
}

// Release drops the advisory lock for key and returns its connection to the pool
func (l *SQLLocker) Release(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	conn, ok := l.conns[key]
	if !ok {
		return false, nil
	}
	released, err := l.query(ctx, conn, l.dialect.unlock, key)
	if err != nil {
		return false, fmt.Errorf("failed to release lock: %w", err)
	}
	delete(l.conns, key)
	_ = conn.Close()
	if !released {
		return false, ErrLockValueMismatch
	}
	return true, nil
}

// query runs stmt through gorm bound to conn, so placeholders follow the dialect
func (l *SQLLocker) query(ctx context.Context, conn *sql.Conn, stmt, key string) (bool, error) {
	tx := l.db.Session(&gorm.Session{NewDB: true, Context: ctx})
	tx.Statement.ConnPool = conn

	var result sql.NullInt64
	if err := tx.Raw(stmt, key).Scan(&result).Error; err != nil {
		return false, err
	}
	return result.Valid && result.Int64 == 1, nil
}

// discard closes the driver connection behind conn instead of returning it
// to the pool, ending its session and every lock the session holds.
func discard(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
}

// Close releases every held lock. A connection whose unlock cannot be
// confirmed is discarded so the lock does not outlive it in the pool.
func (l *SQLLocker) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for key, conn := range l.conns {
		ctx, cancel := utils.WithDefaultTimeout(context.Background())
		released, err := l.query(ctx, conn, l.dialect.unlock, key)
		cancel()
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("failed to release lock %q: %w", key, err))
			discard(conn)
		case !released:
			discard(conn)
		default:
			_ = conn.Close()
		}
		delete(l.conns, key)
	}
	return errors.Join(errs...)
}

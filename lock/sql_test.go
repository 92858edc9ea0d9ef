package lock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDialectFor(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"mysql", "mysql", false},
		{"postgres", "postgres", false},
		{"pgx", "postgres", false},
		{"sqlite", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := dialectFor(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("dialectFor(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedDialect) {
					t.Errorf("dialectFor(%q) error = %v, want %v", tt.name, err, ErrUnsupportedDialect)
				}
				return
			}
			if d.name != tt.want {
				t.Errorf("dialectFor(%q).name = %q, want %q", tt.name, d.name, tt.want)
			}
		})
	}
}

func TestNewSQLLocker_Nil(t *testing.T) {
	if _, err := NewSQLLocker(nil); !errors.Is(err, ErrNilClient) {
		t.Errorf("NewSQLLocker(nil) error = %v, want %v", err, ErrNilClient)
	}
}

// unreachable databases: gorm opens lazily, so failures surface on Acquire
func openUnreachable(t *testing.T, dialect string) *gorm.DB {
	t.Helper()
	var dialector gorm.Dialector
	switch dialect {
	case "mysql":
		dialector = mysql.New(mysql.Config{
			DSN:                       "guard:guard@tcp(127.0.0.1:1)/guard?timeout=1s",
			SkipInitializeWithVersion: true,
		})
	case "postgres":
		dialector = postgres.Open("host=127.0.0.1 port=1 user=guard dbname=guard sslmode=disable connect_timeout=1")
	}
	db, err := gorm.Open(dialector, &gorm.Config{DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	return db
}

func TestSQLLocker_Unreachable(t *testing.T) {
	ctx := context.Background()
	for _, dialect := range []string{"mysql", "postgres"} {
		t.Run(dialect, func(t *testing.T) {
			locker, err := NewSQLLocker(openUnreachable(t, dialect))
			if err != nil {
				t.Fatalf("NewSQLLocker() error = %v", err)
			}
			if locker.dialect.name != dialect {
				t.Errorf("dialect = %q, want %q", locker.dialect.name, dialect)
			}

			ok, err := locker.Acquire(ctx, "key", 0)
			if ok || err == nil {
				t.Errorf("Acquire() = %v, %v, want false and an error", ok, err)
			}
			if len(locker.conns) != 0 {
				t.Errorf("failed Acquire() pinned %d connections", len(locker.conns))
			}

			released, err := locker.Release(ctx, "key")
			if released || err != nil {
				t.Errorf("Release() = %v, %v, want false, nil", released, err)
			}
			if err := locker.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}

func TestSQLLocker_KeyValidation(t *testing.T) {
	ctx := context.Background()
	locker, err := NewSQLLocker(openUnreachable(t, "mysql"))
	if err != nil {
		t.Fatalf("NewSQLLocker() error = %v", err)
	}

	if ok, err := locker.Acquire(ctx, "", 0); ok || !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Acquire(\"\") = %v, %v, want false, %v", ok, err, ErrEmptyKey)
	}
	if ok, err := locker.Acquire(ctx, strings.Repeat("k", 65), 0); ok || err == nil {
		t.Errorf("Acquire(65 characters) = %v, %v, want false and an error", ok, err)
	}
}

type mockDialect struct {
	name   string
	lock   string
	unlock string
	open   func(*sql.DB) gorm.Dialector
}

var mockDialects = []mockDialect{
	{
		name:   "mysql",
		lock:   "SELECT GET_LOCK(?, 0)",
		unlock: "SELECT RELEASE_LOCK(?)",
		open: func(db *sql.DB) gorm.Dialector {
			return mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true})
		},
	},
	{
		name:   "postgres",
		lock:   "SELECT pg_try_advisory_lock(hashtext($1))::int",
		unlock: "SELECT pg_advisory_unlock(hashtext($1))::int",
		open: func(db *sql.DB) gorm.Dialector {
			return postgres.New(postgres.Config{Conn: db})
		},
	},
}

func newMockSQLLocker(t *testing.T, d mockDialect) (*SQLLocker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(d.open(db), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Discard,
	})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	locker, err := NewSQLLocker(gdb)
	if err != nil {
		t.Fatalf("NewSQLLocker() error = %v", err)
	}
	return locker, mock
}

func lockRows(values ...driver.Value) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"locked"})
	for _, v := range values {
		rows.AddRow(v)
	}
	return rows
}

func TestSQLLocker_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, d := range mockDialects {
		t.Run(d.name, func(t *testing.T) {
			t.Run("acquire and release", func(t *testing.T) {
				locker, mock := newMockSQLLocker(t, d)
				mock.ExpectQuery(d.lock).WithArgs("job").WillReturnRows(lockRows(1))
				mock.ExpectQuery(d.unlock).WithArgs("job").WillReturnRows(lockRows(1))

				if ok, err := locker.Acquire(ctx, "job", 0); err != nil || !ok {
					t.Fatalf("Acquire() = %v, %v, want true, nil", ok, err)
				}
				// the session already owns the lock, so no statement may be sent
				if ok, err := locker.Acquire(ctx, "job", 0); err != nil || ok {
					t.Errorf("second Acquire() = %v, %v, want false, nil", ok, err)
				}
				if released, err := locker.Release(ctx, "job"); err != nil || !released {
					t.Errorf("Release() = %v, %v, want true, nil", released, err)
				}
				if released, err := locker.Release(ctx, "job"); err != nil || released {
					t.Errorf("second Release() = %v, %v, want false, nil", released, err)
				}
				if err := mock.ExpectationsWereMet(); err != nil {
					t.Error(err)
				}
			})

			t.Run("held elsewhere", func(t *testing.T) {
				locker, mock := newMockSQLLocker(t, d)
				mock.ExpectQuery(d.lock).WithArgs("job").WillReturnRows(lockRows(0))

				if ok, err := locker.Acquire(ctx, "job", 0); err != nil || ok {
					t.Errorf("Acquire() = %v, %v, want false, nil", ok, err)
				}
				if len(locker.conns) != 0 {
					t.Errorf("contended Acquire() pinned %d connections", len(locker.conns))
				}
				if err := mock.ExpectationsWereMet(); err != nil {
					t.Error(err)
				}
			})

			t.Run("null result", func(t *testing.T) {
				locker, mock := newMockSQLLocker(t, d)
				mock.ExpectQuery(d.lock).WithArgs("job").WillReturnRows(lockRows(nil))

				if ok, err := locker.Acquire(ctx, "job", 0); err != nil || ok {
					t.Errorf("Acquire() = %v, %v, want false, nil", ok, err)
				}
			})

			t.Run("lock lost before release", func(t *testing.T) {
				locker, mock := newMockSQLLocker(t, d)
				mock.ExpectQuery(d.lock).WithArgs("job").WillReturnRows(lockRows(1))
				mock.ExpectQuery(d.unlock).WithArgs("job").WillReturnRows(lockRows(0))

				_, _ = locker.Acquire(ctx, "job", 0)
				released, err := locker.Release(ctx, "job")
				if released || !errors.Is(err, ErrLockValueMismatch) {
					t.Errorf("Release() = %v, %v, want false, %v", released, err, ErrLockValueMismatch)
				}
				if len(locker.conns) != 0 {
					t.Error("connection still pinned after a mismatched release")
				}
			})

			t.Run("failed release can be retried", func(t *testing.T) {
				locker, mock := newMockSQLLocker(t, d)
				mock.ExpectQuery(d.lock).WithArgs("job").WillReturnRows(lockRows(1))
				mock.ExpectQuery(d.unlock).WithArgs("job").WillReturnError(errors.New("timeout"))
				mock.ExpectQuery(d.unlock).WithArgs("job").WillReturnRows(lockRows(1))

				_, _ = locker.Acquire(ctx, "job", 0)
				if released, err := locker.Release(ctx, "job"); err == nil || released {
					t.Fatalf("Release() = %v, %v, want false and an error", released, err)
				}
				if released, err := locker.Release(ctx, "job"); err != nil || !released {
					t.Errorf("retried Release() = %v, %v, want true, nil", released, err)
				}
				if err := mock.ExpectationsWereMet(); err != nil {
					t.Error(err)
				}
			})

			t.Run("close unlocks held keys", func(t *testing.T) {
				locker, mock := newMockSQLLocker(t, d)
				mock.ExpectQuery(d.lock).WithArgs("job").WillReturnRows(lockRows(1))
				mock.ExpectQuery(d.unlock).WithArgs("job").WillReturnRows(lockRows(1))

				_, _ = locker.Acquire(ctx, "job", 0)
				if err := locker.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
				if len(locker.conns) != 0 {
					t.Errorf("Close() left %d connections pinned", len(locker.conns))
				}
				if err := mock.ExpectationsWereMet(); err != nil {
					t.Errorf("Close() did not unlock: %v", err)
				}
			})

			t.Run("close reports unlock failure", func(t *testing.T) {
				locker, mock := newMockSQLLocker(t, d)
				mock.ExpectQuery(d.lock).WithArgs("job").WillReturnRows(lockRows(1))
				mock.ExpectQuery(d.unlock).WithArgs("job").WillReturnError(errors.New("broken pipe"))

				_, _ = locker.Acquire(ctx, "job", 0)
				if err := locker.Close(); err == nil {
					t.Error("Close() error = nil, want the unlock failure")
				}
				if len(locker.conns) != 0 {
					t.Errorf("Close() left %d connections pinned", len(locker.conns))
				}
			})
		})
	}
}

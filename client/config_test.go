package client

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Driver != DriverLocal {
		t.Errorf("DefaultConfig().Driver = %q, want %q", cfg.Driver, DriverLocal)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("DefaultConfig().Redis.Addr = %q, want %q", cfg.Redis.Addr, "localhost:6379")
	}
	if cfg.Redis.LockTime != 10*time.Minute {
		t.Errorf("DefaultConfig().Redis.LockTime = %v, want %v", cfg.Redis.LockTime, 10*time.Minute)
	}
	if len(cfg.Etcd.Endpoints) != 1 || cfg.Etcd.Endpoints[0] != "localhost:2379" {
		t.Errorf("DefaultConfig().Etcd.Endpoints = %v, want [localhost:2379]", cfg.Etcd.Endpoints)
	}
	if cfg.Etcd.SessionTTL != 15 {
		t.Errorf("DefaultConfig().Etcd.SessionTTL = %d, want 15", cfg.Etcd.SessionTTL)
	}
	if cfg.NATS.Bucket != "actionguard_locks" {
		t.Errorf("DefaultConfig().NATS.Bucket = %q, want %q", cfg.NATS.Bucket, "actionguard_locks")
	}
	if cfg.SQL.MaxOpenConns != 10 {
		t.Errorf("DefaultConfig().SQL.MaxOpenConns = %d, want 10", cfg.SQL.MaxOpenConns)
	}
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()

	if cfg.PoolSize != 10 {
		t.Errorf("DefaultRedisConfig().PoolSize = %d, want 10", cfg.PoolSize)
	}
	if cfg.MinIdleConns != 5 {
		t.Errorf("DefaultRedisConfig().MinIdleConns = %d, want 5", cfg.MinIdleConns)
	}
	if cfg.DialTimeout != 5*time.Second {
		t.Errorf("DefaultRedisConfig().DialTimeout = %v, want %v", cfg.DialTimeout, 5*time.Second)
	}
	if cfg.ReadTimeout != 3*time.Second {
		t.Errorf("DefaultRedisConfig().ReadTimeout = %v, want %v", cfg.ReadTimeout, 3*time.Second)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("DefaultRedisConfig().MaxRetries = %d, want 3", cfg.MaxRetries)
	}
}

func TestConfig_With(t *testing.T) {
	base := DefaultConfig()
	cfg := base.
		WithDriver(DriverNATS).
		WithRedis(DefaultRedisConfig().WithAddr("redis:6380")).
		WithEtcd(EtcdConfig{Endpoints: []string{"etcd:2379"}}).
		WithNATS(NATSConfig{URL: "nats://nats:4222"}).
		WithSQL(SQLConfig{DSN: "dsn"})

	if cfg.Driver != DriverNATS {
		t.Errorf("WithDriver() Driver = %q, want %q", cfg.Driver, DriverNATS)
	}
	if cfg.Redis.Addr != "redis:6380" {
		t.Errorf("WithRedis() Addr = %q, want %q", cfg.Redis.Addr, "redis:6380")
	}
	if cfg.Etcd.Endpoints[0] != "etcd:2379" {
		t.Errorf("WithEtcd() Endpoints = %v", cfg.Etcd.Endpoints)
	}
	if cfg.NATS.URL != "nats://nats:4222" {
		t.Errorf("WithNATS() URL = %q", cfg.NATS.URL)
	}
	if cfg.SQL.DSN != "dsn" {
		t.Errorf("WithSQL() DSN = %q", cfg.SQL.DSN)
	}
	if base.Driver != DriverLocal {
		t.Error("With* builders modified the receiver")
	}
}

func TestRedisConfig_With(t *testing.T) {
	cfg := DefaultRedisConfig().
		WithAddr("redis:6379").
		WithPassword("secret").
		WithDB(2).
		WithPoolSize(20).
		WithDialTimeout(time.Second).
		WithMaxRetries(-1).
		WithLockTime(time.Minute)

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Addr", cfg.Addr, "redis:6379"},
		{"Password", cfg.Password, "secret"},
		{"DB", cfg.DB, 2},
		{"PoolSize", cfg.PoolSize, 20},
		{"DialTimeout", cfg.DialTimeout, time.Second},
		{"MaxRetries", cfg.MaxRetries, -1},
		{"LockTime", cfg.LockTime, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

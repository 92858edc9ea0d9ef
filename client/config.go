package client

import (
	"time"
)

// Backend drivers understood by Open
const (
	DriverNone     = "none"
	DriverLocal    = "local"
	DriverRedis    = "redis"
	DriverHybrid   = "hybrid"
	DriverEtcd     = "etcd"
	DriverNATS     = "nats"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config selects a lock backend and holds the connection settings of each
// driver. Only the section matching Driver is used.
type Config struct {
	// Driver is one of the Driver* constants (default: local)
	Driver string `mapstructure:"driver"`

	Redis RedisConfig `mapstructure:"redis"`
	Etcd  EtcdConfig  `mapstructure:"etcd"`
	NATS  NATSConfig  `mapstructure:"nats"`
	SQL   SQLConfig   `mapstructure:"sql"`
}

// RedisConfig represents Redis client configuration
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string `mapstructure:"addr"`

	// Password is the Redis password (empty if no password)
	Password string `mapstructure:"password"`

	// DB is the Redis database number (default: 0)
	DB int `mapstructure:"db"`

	// PoolSize is the maximum number of socket connections (default: 10)
	PoolSize int `mapstructure:"pool_size"`

	// MinIdleConns is the minimum number of idle connections (default: 5)
	MinIdleConns int `mapstructure:"min_idle_conns"`

	// DialTimeout is the timeout for establishing connections (default: 5s)
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// ReadTimeout is the timeout for socket reads (default: 3s)
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the timeout for socket writes (default: 3s)
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// MaxRetries is the maximum number of retries for failed commands (default: 3)
	MaxRetries int `mapstructure:"max_retries"`

	// LockTime is how long a lock survives a crashed holder (default: 10m).
	// It is not renewed, so it must exceed the longest guarded run.
	LockTime time.Duration `mapstructure:"lock_time"`
}

// EtcdConfig holds etcd cluster settings
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// Prefix namespaces lock keys (default: /actionguard/locks/)
	Prefix string `mapstructure:"prefix"`
	// SessionTTL is the lease TTL in seconds (default: 15)
	SessionTTL int `mapstructure:"session_ttl"`
}

// NATSConfig holds NATS JetStream settings
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	Name           string        `mapstructure:"name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// Bucket is the key-value bucket for lock entries
	Bucket string `mapstructure:"bucket"`
	// LockTime is the bucket TTL; 0 keeps entries until released
	LockTime time.Duration `mapstructure:"lock_time"`
}

// SQLConfig holds database settings for the mysql and postgres drivers
type SQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// ConnectTimeout bounds the initial ping (default: 5s)
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Driver: DriverLocal,
		Redis:  DefaultRedisConfig(),
		Etcd: EtcdConfig{
			Endpoints:   []string{"localhost:2379"},
			DialTimeout: 5 * time.Second,
			Prefix:      "/actionguard/locks/",
			SessionTTL:  15,
		},
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			Name:           "actionguard",
			ConnectTimeout: 5 * time.Second,
			Bucket:         "actionguard_locks",
		},
		SQL: SQLConfig{
			MaxOpenConns:   10,
			MaxIdleConns:   2,
			ConnectTimeout: 5 * time.Second,
		},
	}
}

// DefaultRedisConfig returns a RedisConfig with default values
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
		LockTime:     10 * time.Minute,
	}
}

// WithDriver sets the backend driver
func (c Config) WithDriver(driver string) Config {
	c.Driver = driver
	return c
}

// WithRedis replaces the Redis section
func (c Config) WithRedis(redis RedisConfig) Config {
	c.Redis = redis
	return c
}

// WithEtcd replaces the etcd section
func (c Config) WithEtcd(etcd EtcdConfig) Config {
	c.Etcd = etcd
	return c
}

// WithNATS replaces the NATS section
func (c Config) WithNATS(nats NATSConfig) Config {
	c.NATS = nats
	return c
}

// WithSQL replaces the SQL section
func (c Config) WithSQL(sql SQLConfig) Config {
	c.SQL = sql
	return c
}

// WithAddr sets the Redis server address
func (c RedisConfig) WithAddr(addr string) RedisConfig {
	c.Addr = addr
	return c
}

// WithPassword sets the Redis password
func (c RedisConfig) WithPassword(password string) RedisConfig {
	c.Password = password
	return c
}

// WithDB sets the Redis database number
func (c RedisConfig) WithDB(db int) RedisConfig {
	c.DB = db
	return c
}

// WithPoolSize sets the connection pool size
func (c RedisConfig) WithPoolSize(size int) RedisConfig {
	c.PoolSize = size
	return c
}

// WithDialTimeout sets the dial timeout
func (c RedisConfig) WithDialTimeout(timeout time.Duration) RedisConfig {
	c.DialTimeout = timeout
	return c
}

// WithMaxRetries sets the maximum number of retries
func (c RedisConfig) WithMaxRetries(retries int) RedisConfig {
	c.MaxRetries = retries
	return c
}

// WithLockTime sets how long a lock survives a crashed holder
func (c RedisConfig) WithLockTime(lockTime time.Duration) RedisConfig {
	c.LockTime = lockTime
	return c
}

package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func redisOptions(cfg RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
	}
}

// NewRedis creates a Redis client and verifies the connection
func NewRedis(cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(redisOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout(cfg.DialTimeout))
	defer cancel()

	if err := PingRedis(client)(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// NewEtcd creates an etcd client and verifies the cluster answers
func NewEtcd(cfg EtcdConfig) (*clientv3.Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints are required")
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: dialTimeout(cfg.DialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout(cfg.DialTimeout))
	defer cancel()

	if err := PingEtcd(client)(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return client, nil
}

// NewNATS connects to NATS and opens a JetStream context
func NewNATS(cfg NATSConfig) (*nats.Conn, nats.JetStreamContext, error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("nats url is required")
	}

	opts := []nats.Option{nats.Timeout(dialTimeout(cfg.ConnectTimeout))}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open JetStream: %w", err)
	}
	return conn, js, nil
}

// NewSQL opens a database through gorm. driver is DriverMySQL or DriverPostgres.
func NewSQL(driver string, cfg SQLConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sql dsn is required")
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout(cfg.ConnectTimeout))
	defer cancel()

	if err := PingSQL(db)(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	return db, nil
}

// PingRedis returns a health check for client
func PingRedis(client redis.UniversalClient) PingFunc {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}
}

// PingEtcd returns a health check querying the first endpoint's status
func PingEtcd(client *clientv3.Client) PingFunc {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("etcd client is nil")
		}
		endpoints := client.Endpoints()
		if len(endpoints) == 0 {
			return errors.New("etcd client has no endpoints")
		}
		if _, err := client.Status(ctx, endpoints[0]); err != nil {
			return fmt.Errorf("etcd status failed: %w", err)
		}
		return nil
	}
}

// PingNATS returns a health check for conn
func PingNATS(conn *nats.Conn) PingFunc {
	return func(ctx context.Context) error {
		if conn == nil {
			return errors.New("nats connection is nil")
		}
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
			defer cancel()
		}
		if err := conn.FlushWithContext(ctx); err != nil {
			return fmt.Errorf("nats flush failed: %w", err)
		}
		return nil
	}
}

// PingSQL returns a health check for db
func PingSQL(db *gorm.DB) PingFunc {
	return func(ctx context.Context) error {
		if db == nil {
			return errors.New("sql database is nil")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("sql ping failed: %w", err)
		}
		return nil
	}
}

func dialTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}

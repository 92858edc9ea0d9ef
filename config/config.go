// Package config loads the actionguard process configuration from a file,
// ACTIONGUARD_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/soulteary/action-guard/client"
	"github.com/soulteary/action-guard/guard"
	"github.com/soulteary/action-guard/sink"
)

// EnvPrefix prefixes environment overrides, e.g. ACTIONGUARD_BACKEND_DRIVER
const EnvPrefix = "ACTIONGUARD"

// Config is the process configuration
type Config struct {
	Guard   GuardConfig    `mapstructure:"guard"`
	Backend client.Config  `mapstructure:"backend"`
	Log     sink.LogConfig `mapstructure:"log"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
}

// GuardConfig holds the file-configurable part of guard.Config
type GuardConfig struct {
	KeyPrefix     string `mapstructure:"key_prefix"`
	MaxKeyLength  int    `mapstructure:"max_key_length"`
	ConsoleOutput bool   `mapstructure:"console_output"`
	LogCategory   string `mapstructure:"log_category"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090"
	Addr string `mapstructure:"addr"`
}

// Apply copies c onto base
func (c GuardConfig) Apply(base guard.Config) guard.Config {
	return base.
		WithKeyPrefix(c.KeyPrefix).
		WithMaxKeyLength(c.MaxKeyLength).
		WithConsoleOutput(c.ConsoleOutput).
		WithLogCategory(c.LogCategory)
}

// Loader reads a Config
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a Loader with defaults and environment overrides set up
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

func setDefaults(v *viper.Viper) {
	g := guard.DefaultConfig()
	v.SetDefault("guard.key_prefix", g.KeyPrefix)
	v.SetDefault("guard.max_key_length", g.MaxKeyLength)
	v.SetDefault("guard.console_output", g.ConsoleOutput)
	v.SetDefault("guard.log_category", g.LogCategory)

	b := client.DefaultConfig()
	v.SetDefault("backend.driver", b.Driver)
	v.SetDefault("backend.redis.addr", b.Redis.Addr)
	v.SetDefault("backend.redis.password", b.Redis.Password)
	v.SetDefault("backend.redis.db", b.Redis.DB)
	v.SetDefault("backend.redis.pool_size", b.Redis.PoolSize)
	v.SetDefault("backend.redis.min_idle_conns", b.Redis.MinIdleConns)
	v.SetDefault("backend.redis.dial_timeout", b.Redis.DialTimeout)
	v.SetDefault("backend.redis.read_timeout", b.Redis.ReadTimeout)
	v.SetDefault("backend.redis.write_timeout", b.Redis.WriteTimeout)
	v.SetDefault("backend.redis.max_retries", b.Redis.MaxRetries)
	v.SetDefault("backend.redis.lock_time", b.Redis.LockTime)
	v.SetDefault("backend.etcd.endpoints", b.Etcd.Endpoints)
	v.SetDefault("backend.etcd.username", b.Etcd.Username)
	v.SetDefault("backend.etcd.password", b.Etcd.Password)
	v.SetDefault("backend.etcd.dial_timeout", b.Etcd.DialTimeout)
	v.SetDefault("backend.etcd.prefix", b.Etcd.Prefix)
	v.SetDefault("backend.etcd.session_ttl", b.Etcd.SessionTTL)
	v.SetDefault("backend.nats.url", b.NATS.URL)
	v.SetDefault("backend.nats.name", b.NATS.Name)
	v.SetDefault("backend.nats.connect_timeout", b.NATS.ConnectTimeout)
	v.SetDefault("backend.nats.bucket", b.NATS.Bucket)
	v.SetDefault("backend.nats.lock_time", b.NATS.LockTime)
	v.SetDefault("backend.sql.dsn", b.SQL.DSN)
	v.SetDefault("backend.sql.max_open_conns", b.SQL.MaxOpenConns)
	v.SetDefault("backend.sql.max_idle_conns", b.SQL.MaxIdleConns)
	v.SetDefault("backend.sql.conn_max_lifetime", b.SQL.ConnMaxLifetime)
	v.SetDefault("backend.sql.connect_timeout", b.SQL.ConnectTimeout)

	l := sink.DefaultLogConfig()
	v.SetDefault("log.driver", l.Driver)
	v.SetDefault("log.level", l.Level)
	v.SetDefault("log.format", l.Format)
	v.SetDefault("log.file", l.File)
	v.SetDefault("log.max_size", l.MaxSize)
	v.SetDefault("log.max_age", l.MaxAge)
	v.SetDefault("log.compress", l.Compress)

	v.SetDefault("metrics.addr", "")
}

// BindFlag makes flag override key when it is set on the command line
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if err := l.v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("failed to bind flag for %s: %w", key, err)
	}
	return nil
}

// Load reads path, if not empty, and returns the merged configuration
func (l *Loader) Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		configType := configType(filepath.Ext(path))
		if configType == "" {
			return cfg, fmt.Errorf("unsupported config type: %s", filepath.Ext(path))
		}
		l.v.SetConfigFile(path)
		l.v.SetConfigType(configType)
		if err := l.v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := l.v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Load reads the configuration at path with environment overrides
func Load(path string) (Config, error) {
	return NewLoader().Load(path)
}

func configType(ext string) string {
	switch ext {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return ""
	}
}

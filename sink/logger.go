package sink

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig describes a process logger
type LogConfig struct {
	// Driver selects the logging library: "zap" (default) or "zerolog"
	Driver string `mapstructure:"driver"`
	// Level is the minimum level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format is "console" or "json"
	Format string `mapstructure:"format"`
	// File enables a rotated log file in addition to stderr
	File string `mapstructure:"file"`
	// MaxSize is the size in megabytes before rotation (default: 100)
	MaxSize int `mapstructure:"max_size"`
	// MaxAge is the number of days rotated files are kept (default: 7)
	MaxAge int `mapstructure:"max_age"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// DefaultLogConfig returns a LogConfig with default values
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Driver:  "zap",
		Level:   "info",
		Format:  "console",
		MaxSize: 100,
		MaxAge:  7,
	}
}

func (c LogConfig) fileWriter() io.Writer {
	if c.File == "" {
		return nil
	}
	maxSize, maxAge := c.MaxSize, c.MaxAge
	if maxSize <= 0 {
		maxSize = 100
	}
	if maxAge <= 0 {
		maxAge = 7
	}
	return &lumberjack.Logger{
		Filename: c.File,
		MaxSize:  maxSize,
		MaxAge:   maxAge,
		Compress: c.Compress,
	}
}

// NewZapLogger builds a zap logger writing to stderr and, when configured, to
// a rotated file.
func NewZapLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch cfg.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	ws := zapcore.Lock(zapcore.AddSync(os.Stderr))
	if w := cfg.fileWriter(); w != nil {
		ws = zapcore.NewMultiWriteSyncer(ws, zapcore.AddSync(w))
	}
	return zap.New(zapcore.NewCore(enc, ws, level)), nil
}

// NewZerologLogger builds a zerolog logger with the same outputs as NewZapLogger.
func NewZerologLogger(cfg LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var out io.Writer = os.Stderr
	switch cfg.Format {
	case "json":
	case "", "console":
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unsupported log format %q", cfg.Format)
	}
	if w := cfg.fileWriter(); w != nil {
		out = zerolog.MultiLevelWriter(out, w)
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// New builds the Sink selected by cfg.Driver. The returned function flushes
// buffered output and must be called before exit.
func New(cfg LogConfig) (Sink, func(), error) {
	switch cfg.Driver {
	case "", "zap":
		logger, err := NewZapLogger(cfg)
		if err != nil {
			return nil, nil, err
		}
		return Zap(logger), func() { _ = logger.Sync() }, nil
	case "zerolog":
		logger, err := NewZerologLogger(cfg)
		if err != nil {
			return nil, nil, err
		}
		return Zerolog(logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported log driver %q", cfg.Driver)
	}
}

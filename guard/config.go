package guard

import (
	"io"
	"os"

	"github.com/soulteary/action-guard/sink"
)

const (
	// DefaultMaxKeyLength bounds derived keys, prefix included
	DefaultMaxKeyLength = 255

	// DefaultLogCategory is the category attached to every logged message
	DefaultLogCategory = "actionguard"
)

// KeySource derives the lock key of an operation. The zero value uses the
// operation's route.
type KeySource struct {
	fixed string
	fn    func(Operation) string
}

// FixedKey returns a KeySource that always yields key
func FixedKey(key string) KeySource {
	return KeySource{fixed: key}
}

// KeyFunc returns a KeySource that calls fn for every guarded execution
func KeyFunc(fn func(Operation) string) KeySource {
	return KeySource{fn: fn}
}

func (k KeySource) derive(op Operation) string {
	switch {
	case k.fn != nil:
		return k.fn(op)
	case k.fixed != "":
		return k.fixed
	default:
		return op.Route()
	}
}

// Config represents guard configuration
type Config struct {
	// Key derives the lock key (default: operation route)
	Key KeySource
	// KeyPrefix is prepended to every non-empty derived key
	KeyPrefix string
	// MaxKeyLength is the maximum key length in characters (default: 255)
	MaxKeyLength int
	// ConsoleOutput enables writing messages to Console (default: true)
	ConsoleOutput bool
	// Console receives messages when ConsoleOutput is set (default: os.Stdout)
	Console io.Writer
	// Logger receives every message when set
	Logger sink.Sink
	// LogCategory is passed to Logger with every message (default: "actionguard")
	LogCategory string
	// Metrics observes guard outcomes when set
	Metrics Recorder
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		MaxKeyLength:  DefaultMaxKeyLength,
		ConsoleOutput: true,
		Console:       os.Stdout,
		LogCategory:   DefaultLogCategory,
	}
}

// WithKey sets the key source
func (c Config) WithKey(key KeySource) Config {
	c.Key = key
	return c
}

// WithKeyPrefix sets the key prefix
func (c Config) WithKeyPrefix(prefix string) Config {
	c.KeyPrefix = prefix
	return c
}

// WithMaxKeyLength sets the maximum key length
func (c Config) WithMaxKeyLength(n int) Config {
	c.MaxKeyLength = n
	return c
}

// WithConsoleOutput toggles console output
func (c Config) WithConsoleOutput(enabled bool) Config {
	c.ConsoleOutput = enabled
	return c
}

// WithConsole sets the console writer
func (c Config) WithConsole(w io.Writer) Config {
	c.Console = w
	return c
}

// WithLogger sets the log sink
func (c Config) WithLogger(logger sink.Sink) Config {
	c.Logger = logger
	return c
}

// WithLogCategory sets the log category
func (c Config) WithLogCategory(category string) Config {
	c.LogCategory = category
	return c
}

// WithMetrics sets the metrics recorder
func (c Config) WithMetrics(r Recorder) Config {
	c.Metrics = r
	return c
}

// Package sink defines where guard diagnostics go. A Sink receives a
// human-readable message together with its severity and category; adapters
// are provided for zap and zerolog.
package sink

import "strings"

// Level is the severity of a message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name into a Level. Unknown names map to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Sink receives log messages
type Sink interface {
	Write(level Level, category, message string)
}

// Func adapts a plain function to the Sink interface
type Func func(level Level, category, message string)

// Write calls f
func (f Func) Write(level Level, category, message string) {
	f(level, category, message)
}

// Nop discards everything
type Nop struct{}

func (Nop) Write(Level, string, string) {}

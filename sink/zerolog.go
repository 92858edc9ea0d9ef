package sink

import (
	"github.com/rs/zerolog"
)

// ZerologSink forwards messages to a zerolog logger
type ZerologSink struct {
	logger zerolog.Logger
}

// Zerolog wraps logger as a Sink
func Zerolog(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

// Write implements Sink
func (s *ZerologSink) Write(level Level, category, message string) {
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = s.logger.Debug()
	case LevelWarning:
		ev = s.logger.Warn()
	case LevelError:
		ev = s.logger.Error()
	default:
		ev = s.logger.Info()
	}
	ev.Str(CategoryField, category).Msg(message)
}

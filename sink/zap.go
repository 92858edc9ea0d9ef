package sink

import (
	"go.uber.org/zap"
)

// CategoryField is the structured field carrying the message category.
const CategoryField = "category"

// ZapSink forwards messages to a zap logger
type ZapSink struct {
	logger *zap.Logger
}

// Zap wraps logger as a Sink. A nil logger yields a no-op sink.
func Zap(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

// Write implements Sink
func (s *ZapSink) Write(level Level, category, message string) {
	field := zap.String(CategoryField, category)
	switch level {
	case LevelDebug:
		s.logger.Debug(message, field)
	case LevelWarning:
		s.logger.Warn(message, field)
	case LevelError:
		s.logger.Error(message, field)
	default:
		s.logger.Info(message, field)
	}
}

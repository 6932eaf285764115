package logging

import "github.com/rs/zerolog"

// DispatcherLogger writes operator command dispatch through zerolog. It
// satisfies dispatcher.Logger; key-value pairs become top-level fields.
type DispatcherLogger struct {
	logger zerolog.Logger
}

// NewDispatcherLogger wraps logger.
func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger}
}

// Dispatcher returns a dispatcher logger feeding the session logger.
func (m *SlogManager) Dispatcher() *DispatcherLogger {
	return NewDispatcherLogger(m.Zerolog("dispatcher"))
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

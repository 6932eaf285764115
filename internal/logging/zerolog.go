package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/rs/zerolog"
)

// zerologBridge receives zerolog JSON events and replays them on a slog
// logger, so managers built on zerolog share the application's handlers.
type zerologBridge struct {
	logger *slog.Logger
}

func (b zerologBridge) Write(p []byte) (int, error) {
	var event map[string]any
	if err := json.Unmarshal(p, &event); err != nil {
		b.logger.Info(string(p))
		return len(p), nil
	}

	level := slog.LevelInfo
	if s, ok := event[zerolog.LevelFieldName].(string); ok {
		switch lvl, _ := zerolog.ParseLevel(s); lvl {
		case zerolog.TraceLevel, zerolog.DebugLevel:
			level = slog.LevelDebug
		case zerolog.WarnLevel:
			level = slog.LevelWarn
		case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
			level = slog.LevelError
		}
	}
	msg, _ := event[zerolog.MessageFieldName].(string)
	delete(event, zerolog.LevelFieldName)
	delete(event, zerolog.MessageFieldName)

	keys := make([]string, 0, len(event))
	for k := range event {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k, event[k])
	}
	b.logger.Log(context.Background(), level, msg, args...)
	return len(p), nil
}

// Zerolog returns a zerolog.Logger for component whose events are written
// through the slog logger.
func (m *SlogManager) Zerolog(component string) zerolog.Logger {
	return zerolog.New(zerologBridge{logger: m.Logger()}).
		Level(zerolog.TraceLevel).
		With().Str("component", component).
		Logger()
}

package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// instrumentationScope names the OTel logger.
const instrumentationScope = "autoref"

// osStdout is swapped by tests.
var osStdout io.Writer = os.Stdout

// Options configures Setup.
type Options struct {
	// File receives text logs. When nil, logs go to stdout.
	File  io.Writer
	Level string
	// Provider enables the OTel bridge when non-nil.
	Provider *sdklog.LoggerProvider
	// State stamps the current mode and game state onto every record.
	State StateFunc
}

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger
	level  *slog.LevelVar

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{level: new(slog.LevelVar)}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system with file or console output and
// optional OTel output.
func (m *SlogManager) Setup(opts Options) {
	m.level.Set(parseLevel(opts.Level))
	m.logProvider = opts.Provider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: m.level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	if opts.Provider != nil {
		handlers = append(handlers, otelslog.NewHandler(instrumentationScope, otelslog.WithLoggerProvider(opts.Provider)))
	}

	var handler slog.Handler = newFanout(handlers...)
	if opts.State != nil {
		handler = &stateHandler{inner: handler, state: opts.State}
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", opts.Level)
}

// SetLevel changes the level of the handlers built by Setup.
func (m *SlogManager) SetLevel(level string) {
	m.level.Set(parseLevel(level))
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

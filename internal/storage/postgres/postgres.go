// Package postgres implements the decision journal on PostgreSQL. When the
// server cannot be reached it falls back to an in-memory SQLite database
// that is dumped to disk on Close.
package postgres

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/robocup-autoref/autoref/internal/database"
	"github.com/robocup-autoref/autoref/internal/model"
	gormstorage "github.com/robocup-autoref/autoref/internal/storage/gorm"
)

// Config holds the connection and fallback settings.
type Config struct {
	database.Config `mapstructure:",squash"`
	FallbackPath    string `json:"fallbackPath" mapstructure:"fallbackPath"`
}

// Backend wraps the GORM backend with a database.Manager connection.
type Backend struct {
	*gormstorage.Backend
	cfg     Config
	session model.Session
	manager *database.Manager
}

// New creates the backend. The connection is opened by Init.
func New(cfg Config, session model.Session, log zerolog.Logger) *Backend {
	m := database.NewManager(log)
	m.SqliteFilePath = cfg.FallbackPath
	return &Backend{cfg: cfg, session: session, manager: m}
}

// Init connects, migrates and starts the embedded GORM backend.
func (b *Backend) Init() error {
	if err := b.manager.Connect(b.cfg.Config); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := b.manager.Setup(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:      b.manager.DB,
		Logger:  b.manager.Logger,
		Session: b.session,
	})
	return b.Backend.Init()
}

// IsFallback reports whether the journal is running on the SQLite fallback.
func (b *Backend) IsFallback() bool {
	return b.manager.ShouldSaveLocal
}

// Close flushes the journal and releases the connection.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if b.manager.ShouldSaveLocal && b.manager.SqliteFilePath != "" {
		if err := b.manager.DumpMemoryToDisk(); err != nil {
			return err
		}
	}
	return b.manager.SqlDB.Close()
}

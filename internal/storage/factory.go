package storage

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/robocup-autoref/autoref/internal/model"
	"github.com/robocup-autoref/autoref/internal/storage/memory"
	"github.com/robocup-autoref/autoref/internal/storage/postgres"
	sqlitestorage "github.com/robocup-autoref/autoref/internal/storage/sqlite"
)

var (
	_ Backend = (*memory.Backend)(nil)
	_ Backend = (*sqlitestorage.Backend)(nil)
	_ Backend = (*postgres.Backend)(nil)
	_ Reader  = (*memory.Backend)(nil)
	_ Reader  = (*sqlitestorage.Backend)(nil)
)

// Config selects and configures the journal backend.
type Config struct {
	// Type is one of "none", "memory", "sqlite" or "postgres".
	Type     string               `json:"type" mapstructure:"type"`
	Memory   memory.Config        `json:"memory" mapstructure:"memory"`
	Sqlite   sqlitestorage.Config `json:"sqlite" mapstructure:"sqlite"`
	Postgres postgres.Config      `json:"postgres" mapstructure:"postgres"`
}

// NewBackend creates a storage backend based on configuration. "none"
// returns a nil backend.
func NewBackend(cfg Config, session model.Session, log zerolog.Logger) (Backend, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "none":
		return nil, nil
	case "memory":
		return memory.New(cfg.Memory, session.Identifier), nil
	case "sqlite":
		b, err := sqlitestorage.New(cfg.Sqlite, session, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "postgres":
		return postgres.New(cfg.Postgres, session, log), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// Package sqlitestorage implements the decision journal on an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend via composition; the only SQLite-specific
// concerns are creating the in-memory DB and the periodic disk dump.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/robocup-autoref/autoref/internal/database"
	"github.com/robocup-autoref/autoref/internal/model"
	gormstorage "github.com/robocup-autoref/autoref/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"` // Path for periodic VACUUM INTO dumps
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      zerolog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new SQLite storage backend.
func New(cfg Config, session model.Session, log zerolog.Logger) (*Backend, error) {
	db, err := database.GetSqliteDB("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:      db,
		Logger:  log,
		Session: session,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, closes the embedded GORM backend and
// writes a last dump.
func (b *Backend) Close() error {
	close(b.stopChan)
	b.wg.Wait()
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if b.cfg.DumpPath == "" {
		return nil
	}
	return b.dump()
}

func (b *Backend) dump() error {
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug().Dur("duration", time.Since(start)).Str("path", b.cfg.DumpPath).Msg("Dumped journal to disk")
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Error().Err(err).Msg("Error flushing journal before dump")
			}
			if err := b.dump(); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			}
		}
	}
}

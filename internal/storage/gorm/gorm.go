// Package gormstorage implements the decision journal on GORM with an
// internal queue and a background DB writer goroutine. The sqlite and
// postgres backends differ only in how they get their *gorm.DB.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/robocup-autoref/autoref/internal/database"
	"github.com/robocup-autoref/autoref/internal/model"
	"github.com/robocup-autoref/autoref/internal/model/convert"
	"github.com/robocup-autoref/autoref/internal/queue"
	"github.com/robocup-autoref/autoref/pkg/core"
)

const defaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger zerolog.Logger
	// Session is inserted on Init; its ID is stamped on every decision.
	Session       model.Session
	FlushInterval time.Duration
}

// Backend queues decisions and writes them in batches.
type Backend struct {
	deps      Dependencies
	decisions *queue.Queue[model.Decision]
	sessionID atomic.Uint64

	// Serializes flushes between the writer goroutine and Flush callers.
	writeMu   sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{deps: deps}
}

// Init creates the queue, migrates the schema, opens the session and starts
// the DB writer goroutine. Without a DB the backend only queues.
func (b *Backend) Init() error {
	b.decisions = queue.New[model.Decision]()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if db := b.deps.DB; db != nil {
		if err := database.Migrate(db); err != nil {
			return err
		}
		session := b.deps.Session
		if session.StartedAt.IsZero() {
			session.StartedAt = time.Now().UTC()
		}
		if err := db.Create(&session).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		b.sessionID.Store(uint64(session.ID))
		b.deps.Logger.Info().Uint("session", session.ID).Msg("Journal session opened")
	}

	go b.writeLoop()
	return nil
}

// Close stops the writer after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.closeOnce.Do(func() { close(b.stopChan) })
	<-b.done
	return nil
}

// SessionID returns the journal session, or 0 without a DB.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Pending returns the number of decisions not yet written.
func (b *Backend) Pending() int {
	return b.decisions.Len()
}

// RecordDecision converts and queues a decision.
func (b *Backend) RecordDecision(e *core.DecisionEntry) error {
	gormObj, err := convert.CoreToDecision(*e)
	if err != nil {
		return err
	}
	b.decisions.Push(gormObj)
	return nil
}

// Flush writes every queued decision now.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	sessionID := b.SessionID()
	return writeQueue(b.deps.DB, b.decisions, func(items []model.Decision) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
}

// Decisions returns the decisions of the current session in insertion order.
func (b *Backend) Decisions() ([]core.DecisionEntry, error) {
	if b.deps.DB == nil {
		return nil, errors.New("no database")
	}
	var rows []model.Decision
	if err := b.deps.DB.Where("session_id = ?", b.SessionID()).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read decisions: %w", err)
	}
	out := make([]core.DecisionEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.DecisionToCore(r))
	}
	return out, nil
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed items go back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], prepare func([]T)) error {
	if q.Empty() {
		return nil
	}

	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		tx.Rollback()
		for i := len(items) - 1; i >= 0; i-- {
			q.PushFront(items[i])
		}
		return fmt.Errorf("failed to write %d items: %w", len(items), err)
	}
	return tx.Commit().Error
}

// writeLoop periodically drains the queue into the DB.
func (b *Backend) writeLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error().Err(err).Int("lost", b.Pending()).Msg("Final journal flush failed")
			}
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error().Err(err).Msg("Journal flush failed")
			}
		}
	}
}

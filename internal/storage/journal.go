package storage

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/robocup-autoref/autoref/internal/dispatcher"
	"github.com/robocup-autoref/autoref/internal/monitor"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// CmdJournal is the dispatcher command that writes one decision.
const CmdJournal = ":JOURNAL:"

// Journal writes hub decisions to a backend from a buffered dispatcher
// handler. Recording never blocks; entries are dropped when the buffer is
// full.
type Journal struct {
	backend Backend
	d       *dispatcher.Dispatcher
	logger  *slog.Logger
	dropped atomic.Uint64
}

// NewJournal registers the journal handler on d with a buffer of size.
func NewJournal(b Backend, d *dispatcher.Dispatcher, logger *slog.Logger, size int) *Journal {
	j := &Journal{backend: b, d: d, logger: logger}
	d.Register(CmdJournal, j.handle, dispatcher.Buffered(size))
	return j
}

// Attach subscribes the journal to every decision published on hub.
func (j *Journal) Attach(hub *monitor.Hub) {
	hub.OnDecision(j.Record)
}

// Record queues e for the backend.
func (j *Journal) Record(e core.DecisionEntry) {
	_, err := j.d.Dispatch(dispatcher.Event{Command: CmdJournal, Payload: e, Timestamp: e.Time})
	if err != nil {
		j.dropped.Add(1)
		j.logger.Debug("journal entry dropped", "kind", e.Kind, "name", e.Name, "error", err)
	}
}

// Dropped returns how many entries did not fit the buffer.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

func (j *Journal) handle(e dispatcher.Event) (any, error) {
	entry, ok := e.Payload.(core.DecisionEntry)
	if !ok {
		return nil, fmt.Errorf("unexpected journal payload %T", e.Payload)
	}
	if err := j.backend.RecordDecision(&entry); err != nil {
		return nil, fmt.Errorf("record %s %s: %w", entry.Kind, entry.Name, err)
	}
	return nil, nil
}

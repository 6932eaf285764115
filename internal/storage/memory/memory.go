// Package memory keeps the decision journal in memory and exports it as
// JSON when the backend is closed.
package memory

import (
	"sync"
	"time"

	"github.com/robocup-autoref/autoref/pkg/core"
)

// Config holds in-memory/JSON storage backend settings.
type Config struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// Backend stores the session's decisions in memory and exports to JSON.
type Backend struct {
	cfg        Config
	identifier string
	startedAt  time.Time

	decisions []core.DecisionEntry
	counts    map[core.DecisionKind]int

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend. identifier names the export file.
func New(cfg Config, identifier string) *Backend {
	return &Backend{
		cfg:        cfg,
		identifier: identifier,
		counts:     make(map[core.DecisionKind]int),
	}
}

// Init starts a new session.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.startedAt = time.Now().UTC()
	b.decisions = nil
	b.counts = make(map[core.DecisionKind]int)
	b.idCounter = 0
	return nil
}

// Close exports the session when an output directory is configured.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON(time.Now().UTC())
}

// RecordDecision stores a copy of e and assigns its ID.
func (b *Backend) RecordDecision(e *core.DecisionEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	e.ID = b.idCounter
	b.decisions = append(b.decisions, *e)
	b.counts[e.Kind]++
	return nil
}

// Decisions returns the recorded decisions in order.
func (b *Backend) Decisions() ([]core.DecisionEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.DecisionEntry, len(b.decisions))
	copy(out, b.decisions)
	return out, nil
}

// Count returns how many decisions of kind were recorded.
func (b *Backend) Count(kind core.DecisionKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counts[kind]
}

// ExportedFilePath returns the path of the last export, if any.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

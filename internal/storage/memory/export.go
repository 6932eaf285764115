package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robocup-autoref/autoref/pkg/core"
)

// JournalExport is the root JSON structure of an exported session.
type JournalExport struct {
	Identifier string         `json:"identifier"`
	StartedAt  time.Time      `json:"startedAt"`
	EndedAt    time.Time      `json:"endedAt"`
	Counts     map[string]int `json:"counts"`
	Decisions  []DecisionJSON `json:"decisions"`
}

// DecisionJSON is one exported decision.
type DecisionJSON struct {
	ID        uint      `json:"id"`
	Kind      string    `json:"kind"`
	Time      time.Time `json:"time"`
	GameState string    `json:"gameState"`
	Team      string    `json:"team,omitempty"`
	Name      string    `json:"name"`
	Details   string    `json:"details,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// exportJSON writes the session to a JSON file, gzipped if configured.
func (b *Backend) exportJSON(endedAt time.Time) error {
	export := b.buildExport(endedAt)

	// Build filename
	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(b.identifier)
	if name == "" {
		name = "autoref"
	}
	timestamp := b.startedAt.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", name, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport(endedAt time.Time) JournalExport {
	export := JournalExport{
		Identifier: b.identifier,
		StartedAt:  b.startedAt,
		EndedAt:    endedAt,
		Counts:     make(map[string]int, len(b.counts)),
		Decisions:  make([]DecisionJSON, 0, len(b.decisions)),
	}
	for kind, n := range b.counts {
		export.Counts[string(kind)] = n
	}
	for _, d := range b.decisions {
		export.Decisions = append(export.Decisions, toJSON(d))
	}
	return export
}

func toJSON(d core.DecisionEntry) DecisionJSON {
	out := DecisionJSON{
		ID:        d.ID,
		Kind:      string(d.Kind),
		Time:      d.Time,
		GameState: d.GameState.String(),
		Name:      d.Name,
		Details:   d.Details,
		Payload:   d.Payload,
	}
	if d.Team.IsNonNeutral() {
		out.Team = d.Team.String()
	}
	return out
}

func writeJSON(path string, data JournalExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data JournalExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}

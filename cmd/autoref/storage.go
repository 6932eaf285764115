package main

import (
	"fmt"

	"github.com/robocup-autoref/autoref/internal/config"
	"github.com/robocup-autoref/autoref/internal/dispatcher"
	"github.com/robocup-autoref/autoref/internal/model"
	"github.com/robocup-autoref/autoref/internal/monitor"
	"github.com/robocup-autoref/autoref/internal/storage"
)

// initStorage creates the decision journal. It returns a nil backend when
// the journal is disabled.
func initStorage(cfg config.Config, d *dispatcher.Dispatcher, hub *monitor.Hub) (storage.Backend, error) {
	session := model.Session{
		StartedAt:  SessionStartTime,
		Identifier: cfg.Protocol.Identifier,
		Mode:       cfg.Mode,
		Division:   cfg.Field.Preset,
	}

	backend, err := storage.NewBackend(cfg.Storage, session, SlogManager.Zerolog("storage"))
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if backend == nil {
		Logger.Info("Decision journal disabled")
		return nil, nil
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Type, err)
	}

	journal := storage.NewJournal(backend, d, Logger.With("component", "journal"), cfg.Journal.Buffer)
	journal.Attach(hub)
	Logger.Info("Decision journal initialized", "type", cfg.Storage.Type)
	return backend, nil
}

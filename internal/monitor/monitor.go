package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Hub    *Hub
	Logger *slog.Logger
	// StatusFile receives the snapshot as JSON on every interval. Empty
	// disables the file.
	StatusFile string
	Interval   time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status renders the current snapshot.
func (s *Service) Status() string {
	b, err := json.MarshalIndent(s.deps.Hub.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "%s"}`, err)
	}
	return string(b)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	var statusFile *os.File
	if s.deps.StatusFile != "" {
		f, err := os.Create(s.deps.StatusFile)
		if err != nil {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
			return fmt.Errorf("creating status file: %w", err)
		}
		statusFile = f
	}

	go func() {
		defer close(done)
		if statusFile != nil {
			defer statusFile.Close()
		}

		s.deps.Logger.Debug("Starting status monitor goroutine", "statusFile", s.deps.StatusFile)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if statusFile == nil {
					continue
				}
				if err := writeStatus(statusFile, s.Status()); err != nil {
					s.deps.Logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

func writeStatus(f *os.File, status string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := f.WriteString(status + "\n")
	return err
}

// Stop stops the status monitor and waits for its goroutine.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.doneChan
	s.mu.Unlock()
	<-done
}

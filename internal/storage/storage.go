// Package storage defines the decision journal backends and feeds them from
// the monitor hub.
package storage

import "github.com/robocup-autoref/autoref/pkg/core"

// Backend is the interface all journal implementations must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	RecordDecision(e *core.DecisionEntry) error
}

// Reader is an optional interface for backends that can list the decisions
// of the current session.
type Reader interface {
	Decisions() ([]core.DecisionEntry, error)
}

package core

import "time"

// DecisionKind classifies a journal entry.
type DecisionKind string

const (
	DecisionViolation DecisionKind = "violation"
	DecisionCommand   DecisionKind = "command"
	DecisionPhase     DecisionKind = "phase"
	DecisionMode      DecisionKind = "mode"
	DecisionReply     DecisionKind = "reply"
)

// DecisionEntry is one loggable decision event as recorded by the journal.
type DecisionEntry struct {
	ID        uint
	Kind      DecisionKind
	Time      time.Time
	GameState GameState
	Team      TeamColor
	// Name is the violation type, command, phase or mode name.
	Name    string
	Details string
	// Payload is any JSON-marshalable value attached to the decision.
	Payload any
}

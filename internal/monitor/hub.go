// Package monitor publishes what the autoref decides to observers
// (journal, telemetry, status file) and keeps the latest status snapshot.
package monitor

import (
	"sync"
	"time"

	"github.com/robocup-autoref/autoref/internal/engine"
	"github.com/robocup-autoref/autoref/internal/phase"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// CommandEvent is a decision handed to the client, or in passive mode one
// that would have been.
type CommandEvent struct {
	Time      time.Time
	GameState core.GameState
	Command   core.RefboxCommand
	Sent      bool
}

// ViolationEvent is one detected violation.
type ViolationEvent struct {
	Time      time.Time
	GameState core.GameState
	Violation core.RuleViolation
}

// PhaseEvent is published when the machine enters a phase.
type PhaseEvent struct {
	Time      time.Time
	GameState core.GameState
	Phase     phase.ID
	FollowUp  core.FollowUp
}

// ModeEvent is published on mode switches, pause and resume.
type ModeEvent struct {
	Time   time.Time
	Mode   engine.Mode
	Paused bool
}

// ReplyEvent is the controller's answer to a sent decision.
type ReplyEvent struct {
	Time    time.Time
	Command core.RefboxCommand
	Status  string
	Reason  string
}

// Snapshot is the current autoref status.
type Snapshot struct {
	Time      time.Time      `json:"time"`
	Mode      string         `json:"mode"`
	Paused    bool           `json:"paused"`
	GameState core.GameState `json:"gameState"`
	Phase     string         `json:"phase"`
	FollowUp  string         `json:"followUp"`
	Stage     string         `json:"placementStage"`
	// Failures counts consecutive failed placements per team.
	Failures  map[string]int `json:"placementFailures"`
	Detectors []string       `json:"detectors"`
	Connected bool           `json:"connected"`
	Pending   int            `json:"pending"`
	Ticks     uint64         `json:"ticks"`
	Dropped   uint64         `json:"droppedFrames"`
}

type registry[T any] struct {
	mu  sync.RWMutex
	fns []func(T)
}

func (r *registry[T]) add(fn func(T)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns = append(r.fns, fn)
}

func (r *registry[T]) publish(v T) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fn := range r.fns {
		fn(v)
	}
}

// Hub fans events out to observers. Observers run on the publishing
// goroutine, usually the runner, and must not block.
type Hub struct {
	commands   registry[CommandEvent]
	violations registry[ViolationEvent]
	phases     registry[PhaseEvent]
	modes      registry[ModeEvent]
	replies    registry[ReplyEvent]

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewHub creates a hub without observers.
func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) OnCommand(fn func(CommandEvent))     { h.commands.add(fn) }
func (h *Hub) OnViolation(fn func(ViolationEvent)) { h.violations.add(fn) }
func (h *Hub) OnPhase(fn func(PhaseEvent))         { h.phases.add(fn) }
func (h *Hub) OnMode(fn func(ModeEvent))           { h.modes.add(fn) }
func (h *Hub) OnReply(fn func(ReplyEvent))         { h.replies.add(fn) }

func (h *Hub) PublishCommand(e CommandEvent)     { h.commands.publish(e) }
func (h *Hub) PublishViolation(e ViolationEvent) { h.violations.publish(e) }
func (h *Hub) PublishPhase(e PhaseEvent)         { h.phases.publish(e) }
func (h *Hub) PublishMode(e ModeEvent)           { h.modes.publish(e) }
func (h *Hub) PublishReply(e ReplyEvent)         { h.replies.publish(e) }

// SetSnapshot replaces the current status.
func (h *Hub) SetSnapshot(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = s
}

// Snapshot returns the latest status.
func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}

// OnDecision subscribes fn to every event kind, converted to journal
// entries.
func (h *Hub) OnDecision(fn func(core.DecisionEntry)) {
	h.OnCommand(func(e CommandEvent) {
		entry := core.DecisionEntry{
			Kind:      core.DecisionCommand,
			Time:      e.Time,
			GameState: e.GameState,
			Name:      e.Command.Command.String(),
			Payload:   e.Command,
		}
		if e.Command.Event != nil {
			entry.Team = e.Command.Event.ByTeam
			entry.Details = e.Command.Event.Type.String()
		}
		if !e.Sent {
			entry.Details = "not sent " + entry.Details
		}
		fn(entry)
	})
	h.OnViolation(func(e ViolationEvent) {
		v := e.Violation
		fn(core.DecisionEntry{
			Kind:      core.DecisionViolation,
			Time:      e.Time,
			GameState: e.GameState,
			Team:      v.Team,
			Name:      v.Type.String(),
			Details:   v.String(),
			Payload:   v.Event(),
		})
	})
	h.OnPhase(func(e PhaseEvent) {
		fn(core.DecisionEntry{
			Kind:      core.DecisionPhase,
			Time:      e.Time,
			GameState: e.GameState,
			Name:      e.Phase.String(),
			Details:   e.FollowUp.String(),
		})
	})
	h.OnMode(func(e ModeEvent) {
		details := "running"
		if e.Paused {
			details = "paused"
		}
		fn(core.DecisionEntry{Kind: core.DecisionMode, Time: e.Time, Name: e.Mode.String(), Details: details})
	})
	h.OnReply(func(e ReplyEvent) {
		fn(core.DecisionEntry{
			Kind:    core.DecisionReply,
			Time:    e.Time,
			Name:    e.Status,
			Details: e.Reason,
			Payload: e.Command,
		})
	})
}

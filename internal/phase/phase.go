// Package phase implements the game-phase state machine. Exactly one phase
// handler is active per tick, selected from the official game state.
package phase

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// ID names a phase handler.
type ID int

const (
	Halted ID = iota
	Stopped
	PrepareGoalPlacement
	Running
	PrepareKickoff
	PreparePenalty
	PlaceBall
	Idle
)

var idNames = map[ID]string{
	Halted:               "HALTED",
	Stopped:              "STOPPED",
	PrepareGoalPlacement: "PREPARE_GOAL_PLACEMENT",
	Running:              "RUNNING",
	PrepareKickoff:       "PREPARE_KICKOFF",
	PreparePenalty:       "PREPARE_PENALTY",
	PlaceBall:            "PLACE_BALL",
	Idle:                 "IDLE",
}

func (id ID) String() string {
	if s, ok := idNames[id]; ok {
		return s
	}
	return fmt.Sprintf("ID(%d)", int(id))
}

// Config tunes the phase handlers. Distances are in millimetres.
type Config struct {
	MinStopTime   time.Duration `json:"minStopTime" mapstructure:"minStopTime"`
	MinWaitTime   time.Duration `json:"minWaitTime" mapstructure:"minWaitTime"`
	ReadyWaitTime time.Duration `json:"readyWaitTime" mapstructure:"readyWaitTime"`

	PlacementTimeout       time.Duration `json:"placementTimeout" mapstructure:"placementTimeout"`
	PlacementTolerance     float64       `json:"placementTolerance" mapstructure:"placementTolerance"`
	PlacementRobotDistance float64       `json:"placementRobotDistance" mapstructure:"placementRobotDistance"`
	MaxPlacementFailures   int           `json:"maxPlacementFailures" mapstructure:"maxPlacementFailures"`

	StopDistance     float64 `json:"stopDistance" mapstructure:"stopDistance"`
	KickoffTolerance float64 `json:"kickoffTolerance" mapstructure:"kickoffTolerance"`
	PenaltyDistance  float64 `json:"penaltyDistance" mapstructure:"penaltyDistance"`
}

// DefaultConfig returns the timings used in competition.
func DefaultConfig() Config {
	return Config{
		MinStopTime:            2 * time.Second,
		MinWaitTime:            2 * time.Second,
		ReadyWaitTime:          time.Second,
		PlacementTimeout:       15 * time.Second,
		PlacementTolerance:     150,
		PlacementRobotDistance: 50,
		MaxPlacementFailures:   5,
		StopDistance:           500,
		KickoffTolerance:       100,
		PenaltyDistance:        1000,
	}
}

// Output is what a handler decided in one tick.
type Output struct {
	Commands []core.RefboxCommand
	// Suppressed lists violations the handler consumed without acting.
	Suppressed []core.RuleViolation
}

func (o *Output) emit(cmd core.RefboxCommand) {
	o.Commands = append(o.Commands, cmd)
}

// Handler is one phase. Reset and Prepare are called, in that order, each
// time the phase is entered, before its first Update.
type Handler interface {
	ID() ID
	Prepare(f *frame.RefFrame)
	Update(f *frame.RefFrame, violations []core.RuleViolation) Output
	Reset()
}

// Decision is the result of one machine tick.
type Decision struct {
	Phase ID
	// Entered is set on the tick the phase was switched to.
	Entered    bool
	Commands   []core.RefboxCommand
	Suppressed []core.RuleViolation
	FollowUp   core.FollowUp
}

// game is the state shared by all handlers of one machine.
type game struct {
	cfg      Config
	logger   *slog.Logger
	global   *GlobalState
	followUp core.FollowUp
	proceed  bool
}

func (g *game) setFollowUp(f core.FollowUp) {
	g.followUp = f
}

// Select maps the official game state to a phase.
func Select(f *frame.RefFrame) ID {
	switch f.GameState().State {
	case core.StateHalt:
		return Halted
	case core.StateStop:
		if f.World.Referee.Command.IsGoal() {
			return PrepareGoalPlacement
		}
		return Stopped
	case core.StateRunning, core.StateKickoff, core.StatePenalty, core.StateDirectFree, core.StateIndirectFree:
		return Running
	case core.StatePrepareKickoff:
		return PrepareKickoff
	case core.StatePreparePenalty:
		return PreparePenalty
	case core.StateBallPlacement:
		return PlaceBall
	default:
		return Idle
	}
}

// Machine owns the phase handlers. It must only be used from the runner
// goroutine.
type Machine struct {
	logger   *slog.Logger
	game     *game
	handlers map[ID]Handler
	current  ID
	started  bool
}

// NewMachine builds a machine over the shared global state.
func NewMachine(logger *slog.Logger, cfg Config, global *GlobalState) *Machine {
	g := &game{cfg: cfg, logger: logger, global: global}
	m := &Machine{logger: logger, game: g, handlers: make(map[ID]Handler)}
	for _, h := range []Handler{
		&halted{},
		newStopped(g, Stopped),
		newStopped(g, PrepareGoalPlacement),
		&running{g: g},
		newPrepare(g, PrepareKickoff, kickoffReady),
		newPrepare(g, PreparePenalty, penaltyReady),
		&placeBall{g: g},
		&idle{},
	} {
		m.handlers[h.ID()] = h
	}
	return m
}

// Update runs the phase selected by the frame's game state. The first frame
// after a reset only enters the phase.
func (m *Machine) Update(f *frame.RefFrame, violations []core.RuleViolation) Decision {
	id := Select(f)
	h := m.handlers[id]
	entered := !m.started || id != m.current
	if entered {
		h.Reset()
		h.Prepare(f)
		m.logger.Debug("phase entered", "phase", id.String(), "gameState", f.GameState().String())
		m.current, m.started = id, true
	}

	d := Decision{Phase: id, Entered: entered}
	if f.Previous != nil {
		out := h.Update(f, violations)
		d.Commands = out.Commands
		d.Suppressed = out.Suppressed
	}
	d.FollowUp = m.game.followUp
	return d
}

// Current returns the active phase.
func (m *Machine) Current() (ID, bool) {
	return m.current, m.started
}

// FollowUp returns the pending follow-up action.
func (m *Machine) FollowUp() core.FollowUp {
	return m.game.followUp
}

// Proceed lets the next prepare phase start play without waiting for
// readiness.
func (m *Machine) Proceed() {
	m.game.proceed = true
}

// Reset forgets the active phase, the pending follow-up and the proceed
// flag. The global state is reset by its owner.
func (m *Machine) Reset() {
	for _, h := range m.handlers {
		h.Reset()
	}
	m.started = false
	m.game.followUp = core.NoFollowUp()
	m.game.proceed = false
}

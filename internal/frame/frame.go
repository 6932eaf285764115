// Package frame turns raw tracker samples into referee frames enriched with
// the derived facts detectors and phase handlers rely on.
package frame

import (
	"time"

	"github.com/robocup-autoref/autoref/internal/field"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// Config tunes the preprocessor. Distances are in millimetres, speeds in m/s.
type Config struct {
	HistoryLength int `json:"historyLength" mapstructure:"historyLength"`
	// BallOutMargin is how far the ball centre must be outside the field
	// lines before it counts as out.
	BallOutMargin float64 `json:"ballOutMargin" mapstructure:"ballOutMargin"`
	// BallInMargin is how far back inside the ball must be before the
	// ball-left-field fact clears.
	BallInMargin         float64 `json:"ballInMargin" mapstructure:"ballInMargin"`
	HasContactTolerance  float64 `json:"hasContactTolerance" mapstructure:"hasContactTolerance"`
	GainContactTolerance float64 `json:"gainContactTolerance" mapstructure:"gainContactTolerance"`
	StationarySpeed      float64 `json:"stationarySpeed" mapstructure:"stationarySpeed"`
}

// DefaultConfig returns the values used on the competition fields.
func DefaultConfig() Config {
	return Config{
		HistoryLength:        10,
		BallOutMargin:        25,
		BallInMargin:         100,
		HasContactTolerance:  20,
		GainContactTolerance: 10,
		StationarySpeed:      0.05,
	}
}

// Contact is the ball contact state of one robot.
type Contact struct {
	Touching bool
	// JustTouched is set on the first frame of a contact only.
	JustTouched bool
	Since       time.Time
}

// Touch records a robot touching the ball.
type Touch struct {
	Bot core.BotID
	At  time.Time
	Pos core.Vec2
}

// BallExit describes how the ball left the field.
type BallExit struct {
	At  time.Time
	Pos core.Vec2
	// OverGoalLine is false when the ball crossed a touch line.
	OverGoalLine bool
	LastTouch    *Touch
}

// RefFrame is one tick's world frame plus derived facts. It is built once by
// the Preprocessor and must not be modified afterwards.
type RefFrame struct {
	World core.WorldFrame
	Field field.Geometry
	Sides field.Sides

	// Previous is the frame of the preceding tick. Its own Previous link is
	// always nil.
	Previous *RefFrame

	// StateHistory lists game states most recent first, one entry per change.
	StateHistory   []core.GameState
	StateEnteredAt time.Time

	BallLeftField bool
	// BallExit is set while BallLeftField holds.
	BallExit *BallExit

	// BallInGoal is the team whose goal holds the ball, or TeamNeutral.
	BallInGoal core.TeamColor

	Contacts  map[core.BotID]Contact
	LastTouch *Touch
	// RestartTouches lists the distinct robots that touched the ball since
	// the last restart, in touch order.
	RestartTouches []core.BotID

	// BallStationarySince is zero while the ball is moving.
	BallStationarySince time.Time
}

// GameState returns the official game state of the frame.
func (f *RefFrame) GameState() core.GameState {
	return f.World.Referee.GameState
}

// Timestamp returns the tracker timestamp of the frame.
func (f *RefFrame) Timestamp() time.Time {
	return f.World.Timestamp
}

// Ball returns the tracked ball.
func (f *RefFrame) Ball() core.Ball {
	return f.World.Ball
}

// PreviousGameState returns the game state of the previous tick.
func (f *RefFrame) PreviousGameState() (core.GameState, bool) {
	if f.Previous == nil {
		return core.GameState{}, false
	}
	return f.Previous.GameState(), true
}

// StateChanged reports whether the game state differs from the previous tick.
func (f *RefFrame) StateChanged() bool {
	prev, ok := f.PreviousGameState()
	return !ok || prev != f.GameState()
}

// TimeInState returns how long the current game state has been active.
func (f *RefFrame) TimeInState() time.Duration {
	if f.StateEnteredAt.IsZero() {
		return 0
	}
	return f.Timestamp().Sub(f.StateEnteredAt)
}

// LastRestart returns the most recent state in the history that is not
// Running, if any.
func (f *RefFrame) LastRestart() (core.GameState, bool) {
	for _, s := range f.StateHistory {
		if s.State != core.StateRunning {
			return s, true
		}
	}
	return core.GameState{}, false
}

// BallStationaryFor returns how long the ball has been at rest.
func (f *RefFrame) BallStationaryFor() time.Duration {
	if f.BallStationarySince.IsZero() {
		return 0
	}
	return f.Timestamp().Sub(f.BallStationarySince)
}

// JustTouched returns the robots whose ball contact started in this frame,
// in the frame's robot order.
func (f *RefFrame) JustTouched() []core.BotID {
	var out []core.BotID
	for _, r := range f.World.Robots {
		if c, ok := f.Contacts[r.ID]; ok && c.JustTouched {
			out = append(out, r.ID)
		}
	}
	return out
}

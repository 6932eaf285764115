package phase

import "github.com/robocup-autoref/autoref/pkg/core"

// PlacementStage is the progress of the current ball placement.
type PlacementStage int

const (
	PlacementIdle PlacementStage = iota
	PlacementInProgress
	PlacementSucceeded
	PlacementFailed
)

func (s PlacementStage) String() string {
	switch s {
	case PlacementInProgress:
		return "IN_PROGRESS"
	case PlacementSucceeded:
		return "SUCCEEDED"
	case PlacementFailed:
		return "FAILED"
	default:
		return "IDLE"
	}
}

// GlobalState lives as long as the engine: consecutive failed placements
// per team and the current placement stage. It is only touched from the
// runner goroutine.
type GlobalState struct {
	failures map[core.TeamColor]int
	Stage    PlacementStage
}

// NewGlobalState returns zeroed counters.
func NewGlobalState() *GlobalState {
	return &GlobalState{failures: make(map[core.TeamColor]int)}
}

// Failures returns the consecutive failed placements of team.
func (s *GlobalState) Failures(team core.TeamColor) int {
	return s.failures[team]
}

// RecordFailure counts a failed placement and returns the new count.
func (s *GlobalState) RecordFailure(team core.TeamColor) int {
	s.failures[team]++
	s.Stage = PlacementFailed
	return s.failures[team]
}

// RecordSuccess zeroes the counter of team.
func (s *GlobalState) RecordSuccess(team core.TeamColor) {
	s.failures[team] = 0
	s.Stage = PlacementSucceeded
}

// Reset zeroes all counters.
func (s *GlobalState) Reset() {
	clear(s.failures)
	s.Stage = PlacementIdle
}

package core

import (
	"fmt"
	"time"
)

// Command is a referee command as issued by the game controller. The numeric
// values match the game controller's wire enumeration.
type Command int

const (
	// CommandNone marks a RefboxCommand that only reports a game event.
	CommandNone                 Command = -1
	CommandHalt                 Command = 0
	CommandStop                 Command = 1
	CommandNormalStart          Command = 2
	CommandForceStart           Command = 3
	CommandPrepareKickoffYellow Command = 4
	CommandPrepareKickoffBlue   Command = 5
	CommandPreparePenaltyYellow Command = 6
	CommandPreparePenaltyBlue   Command = 7
	CommandDirectFreeYellow     Command = 8
	CommandDirectFreeBlue       Command = 9
	CommandIndirectFreeYellow   Command = 10
	CommandIndirectFreeBlue     Command = 11
	CommandTimeoutYellow        Command = 12
	CommandTimeoutBlue          Command = 13
	CommandGoalYellow           Command = 14
	CommandGoalBlue             Command = 15
	CommandBallPlacementYellow  Command = 16
	CommandBallPlacementBlue    Command = 17
)

var commandNames = map[Command]string{
	CommandNone:                 "NONE",
	CommandHalt:                 "HALT",
	CommandStop:                 "STOP",
	CommandNormalStart:          "NORMAL_START",
	CommandForceStart:           "FORCE_START",
	CommandPrepareKickoffYellow: "PREPARE_KICKOFF_YELLOW",
	CommandPrepareKickoffBlue:   "PREPARE_KICKOFF_BLUE",
	CommandPreparePenaltyYellow: "PREPARE_PENALTY_YELLOW",
	CommandPreparePenaltyBlue:   "PREPARE_PENALTY_BLUE",
	CommandDirectFreeYellow:     "DIRECT_FREE_YELLOW",
	CommandDirectFreeBlue:       "DIRECT_FREE_BLUE",
	CommandIndirectFreeYellow:   "INDIRECT_FREE_YELLOW",
	CommandIndirectFreeBlue:     "INDIRECT_FREE_BLUE",
	CommandTimeoutYellow:        "TIMEOUT_YELLOW",
	CommandTimeoutBlue:          "TIMEOUT_BLUE",
	CommandGoalYellow:           "GOAL_YELLOW",
	CommandGoalBlue:             "GOAL_BLUE",
	CommandBallPlacementYellow:  "BALL_PLACEMENT_YELLOW",
	CommandBallPlacementBlue:    "BALL_PLACEMENT_BLUE",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Command) UnmarshalText(b []byte) error {
	v, err := parseEnum(commandNames, b, "command")
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// teamCommand picks the yellow or blue variant of a team specific command.
func teamCommand(team TeamColor, yellow, blue Command) Command {
	switch team {
	case TeamYellow:
		return yellow
	case TeamBlue:
		return blue
	default:
		return CommandNone
	}
}

// GoalCommand returns GOAL_<team> for the scoring team.
func GoalCommand(scorer TeamColor) Command {
	return teamCommand(scorer, CommandGoalYellow, CommandGoalBlue)
}

// KickoffCommand returns PREPARE_KICKOFF_<team>.
func KickoffCommand(team TeamColor) Command {
	return teamCommand(team, CommandPrepareKickoffYellow, CommandPrepareKickoffBlue)
}

// PenaltyCommand returns PREPARE_PENALTY_<team>.
func PenaltyCommand(team TeamColor) Command {
	return teamCommand(team, CommandPreparePenaltyYellow, CommandPreparePenaltyBlue)
}

// DirectFreeCommand returns DIRECT_FREE_<team>.
func DirectFreeCommand(team TeamColor) Command {
	return teamCommand(team, CommandDirectFreeYellow, CommandDirectFreeBlue)
}

// IndirectFreeCommand returns INDIRECT_FREE_<team>.
func IndirectFreeCommand(team TeamColor) Command {
	return teamCommand(team, CommandIndirectFreeYellow, CommandIndirectFreeBlue)
}

// BallPlacementCommand returns BALL_PLACEMENT_<team>.
func BallPlacementCommand(team TeamColor) Command {
	return teamCommand(team, CommandBallPlacementYellow, CommandBallPlacementBlue)
}

// IsGoal reports whether the command awards a goal.
func (c Command) IsGoal() bool {
	return c == CommandGoalYellow || c == CommandGoalBlue
}

// State is the official game phase derived from the referee command stream.
type State int

const (
	StateUnknown State = iota
	StateHalt
	StateStop
	StateRunning
	StateTimeout
	StateBreak
	StatePostGame
	StatePrepareKickoff
	StateKickoff
	StatePreparePenalty
	StatePenalty
	StateDirectFree
	StateIndirectFree
	StateBallPlacement
)

var stateNames = map[State]string{
	StateUnknown:        "UNKNOWN",
	StateHalt:           "HALT",
	StateStop:           "STOP",
	StateRunning:        "RUNNING",
	StateTimeout:        "TIMEOUT",
	StateBreak:          "BREAK",
	StatePostGame:       "POST_GAME",
	StatePrepareKickoff: "PREPARE_KICKOFF",
	StateKickoff:        "KICKOFF",
	StatePreparePenalty: "PREPARE_PENALTY",
	StatePenalty:        "PENALTY",
	StateDirectFree:     "DIRECT_FREE",
	StateIndirectFree:   "INDIRECT_FREE",
	StateBallPlacement:  "BALL_PLACEMENT",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	v, err := parseEnum(stateNames, b, "game state")
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// GameState is the official state together with the team it applies to
// (the kicking team for restarts, the placing team for ball placement).
type GameState struct {
	State   State     `json:"state"`
	ForTeam TeamColor `json:"forTeam"`
}

// Is reports whether the game state is one of the given states.
func (g GameState) Is(states ...State) bool {
	for _, s := range states {
		if g.State == s {
			return true
		}
	}
	return false
}

func (g GameState) String() string {
	if g.ForTeam.IsNonNeutral() {
		return g.State.String() + "_" + g.ForTeam.String()
	}
	return g.State.String()
}

// Stage is the match stage (first half, break, ...). Only the stages the
// referee logic needs to distinguish are named.
type Stage int

const (
	StageUnknown Stage = iota
	StagePreGame
	StageFirstHalf
	StageHalfTime
	StageSecondHalf
	StageExtraTime
	StagePenaltyShootout
	StagePostGame
)

// RefereeMsg is the last message received from the game controller.
type RefereeMsg struct {
	Command          Command   `json:"command"`
	CommandCounter   uint32    `json:"commandCounter"`
	CommandTimestamp time.Time `json:"commandTimestamp"`
	GameState        GameState `json:"gameState"`
	Stage            Stage     `json:"stage"`
	PlacementPos     *Vec2     `json:"placementPos,omitempty"`
	// BlueOnPositiveHalf tells which goal belongs to which team.
	BlueOnPositiveHalf bool `json:"blueOnPositiveHalf"`
}

func parseEnum[T comparable](names map[T]string, b []byte, kind string) (T, error) {
	for k, v := range names {
		if v == string(b) {
			return k, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", kind, string(b))
}

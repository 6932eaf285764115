// pkg/core/events.go
package core

import (
	"fmt"
	"time"
)

// ViolationType is the kind of rule violation or game event. The same
// enumeration is used on the wire when reporting events to the controller.
type ViolationType int

const (
	ViolationUnknown ViolationType = iota
	ViolationGoal
	ViolationIndirectGoal
	ViolationBallLeftFieldTouchLine
	ViolationBallLeftFieldGoalLine
	ViolationBotKickedBallTooFast
	ViolationAttackerTouchedBallInDefenseArea
	ViolationBotCrashUnique
	ViolationBotTooFastInStop
	ViolationDefenderTooCloseToKickPoint
	ViolationNoProgressInGame
	ViolationPlacementFailed
	ViolationPlacementSucceeded
)

var violationNames = map[ViolationType]string{
	ViolationUnknown:                          "UNKNOWN",
	ViolationGoal:                             "POSSIBLE_GOAL",
	ViolationIndirectGoal:                     "INDIRECT_GOAL",
	ViolationBallLeftFieldTouchLine:           "BALL_LEFT_FIELD_TOUCH_LINE",
	ViolationBallLeftFieldGoalLine:            "BALL_LEFT_FIELD_GOAL_LINE",
	ViolationBotKickedBallTooFast:             "BOT_KICKED_BALL_TOO_FAST",
	ViolationAttackerTouchedBallInDefenseArea: "ATTACKER_TOUCHED_BALL_IN_DEFENSE_AREA",
	ViolationBotCrashUnique:                   "BOT_CRASH_UNIQUE",
	ViolationBotTooFastInStop:                 "BOT_TOO_FAST_IN_STOP",
	ViolationDefenderTooCloseToKickPoint:      "DEFENDER_TOO_CLOSE_TO_KICK_POINT",
	ViolationNoProgressInGame:                 "NO_PROGRESS_IN_GAME",
	ViolationPlacementFailed:                  "PLACEMENT_FAILED",
	ViolationPlacementSucceeded:               "PLACEMENT_SUCCEEDED",
}

func (v ViolationType) String() string {
	if s, ok := violationNames[v]; ok {
		return s
	}
	return fmt.Sprintf("ViolationType(%d)", int(v))
}

func (v ViolationType) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *ViolationType) UnmarshalText(b []byte) error {
	t, err := parseEnum(violationNames, b, "violation type")
	if err != nil {
		return err
	}
	*v = t
	return nil
}

// ParseViolationType resolves a violation name such as "BOT_CRASH_UNIQUE".
func ParseViolationType(name string) (ViolationType, error) {
	return parseEnum(violationNames, []byte(name), "violation type")
}

// ViolationTypes lists every known type except Unknown, in declaration order.
func ViolationTypes() []ViolationType {
	out := make([]ViolationType, 0, len(violationNames)-1)
	for t := ViolationGoal; t <= ViolationPlacementSucceeded; t++ {
		out = append(out, t)
	}
	return out
}

// IsBallLeftField reports whether the violation is one of the ball-out types.
func (v ViolationType) IsBallLeftField() bool {
	return v == ViolationBallLeftFieldTouchLine || v == ViolationBallLeftFieldGoalLine
}

// IsGoal reports whether the violation reports a (possibly invalid) goal.
func (v ViolationType) IsGoal() bool {
	return v == ViolationGoal || v == ViolationIndirectGoal
}

// FollowUpType is the kind of restart scheduled for when play resumes.
type FollowUpType int

const (
	FollowUpKickoff FollowUpType = iota + 1
	FollowUpDirectFree
	FollowUpIndirectFree
	FollowUpPenalty
	FollowUpForceStart
)

var followUpNames = map[FollowUpType]string{
	FollowUpKickoff:      "KICKOFF",
	FollowUpDirectFree:   "DIRECT_FREE",
	FollowUpIndirectFree: "INDIRECT_FREE",
	FollowUpPenalty:      "PENALTY",
	FollowUpForceStart:   "FORCE_START",
}

func (f FollowUpType) String() string {
	if s, ok := followUpNames[f]; ok {
		return s
	}
	return fmt.Sprintf("FollowUpType(%d)", int(f))
}

func (f FollowUpType) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *FollowUpType) UnmarshalText(b []byte) error {
	t, err := parseEnum(followUpNames, b, "follow-up type")
	if err != nil {
		return err
	}
	*f = t
	return nil
}

// FollowUpAction describes what happens when play resumes.
type FollowUpAction struct {
	Type        FollowUpType `json:"type"`
	TeamInFavor TeamColor    `json:"teamInFavor"`
	// Target is where the ball has to be placed before the restart, if anywhere.
	Target *Vec2 `json:"target,omitempty"`
}

// Command returns the referee command that starts this follow-up.
func (a FollowUpAction) Command() Command {
	switch a.Type {
	case FollowUpKickoff:
		return KickoffCommand(a.TeamInFavor)
	case FollowUpDirectFree:
		return DirectFreeCommand(a.TeamInFavor)
	case FollowUpIndirectFree:
		return IndirectFreeCommand(a.TeamInFavor)
	case FollowUpPenalty:
		return PenaltyCommand(a.TeamInFavor)
	case FollowUpForceStart:
		return CommandForceStart
	default:
		return CommandNone
	}
}

func (a FollowUpAction) String() string {
	if a.Target != nil {
		return fmt.Sprintf("%s %s at %s", a.Type, a.TeamInFavor, a.Target)
	}
	return fmt.Sprintf("%s %s", a.Type, a.TeamInFavor)
}

// FollowUp is an optional pending action. The zero value means no action
// is pending; there is no separate "cleared" state.
type FollowUp struct {
	pending bool
	action  FollowUpAction
}

// NoFollowUp returns the empty follow-up.
func NoFollowUp() FollowUp {
	return FollowUp{}
}

// PendingFollowUp wraps an action as pending.
func PendingFollowUp(a FollowUpAction) FollowUp {
	return FollowUp{pending: true, action: a}
}

// Get returns the pending action, if any.
func (f FollowUp) Get() (FollowUpAction, bool) {
	return f.action, f.pending
}

// IsPending reports whether an action is waiting to be executed.
func (f FollowUp) IsPending() bool {
	return f.pending
}

func (f FollowUp) String() string {
	if !f.pending {
		return "none"
	}
	return f.action.String()
}

// GameEvent is the payload reported to the game controller.
type GameEvent struct {
	Type      ViolationType `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	ByTeam    TeamColor     `json:"byTeam"`
	Bot       *BotID        `json:"bot,omitempty"`
	Location  *Vec2         `json:"location,omitempty"`
	Speed     float64       `json:"speed,omitempty"`
	Details   string        `json:"details,omitempty"`
}

// RuleViolation is one detected breach of the rules. It lives only for the
// tick that produced it.
type RuleViolation struct {
	Type      ViolationType
	Timestamp time.Time
	Team      TeamColor
	Bot       *BotID
	Location  *Vec2
	Speed     float64
	Details   string
	FollowUp  FollowUp
}

// Event converts the violation into the game controller payload.
func (v RuleViolation) Event() *GameEvent {
	return &GameEvent{
		Type:      v.Type,
		Timestamp: v.Timestamp,
		ByTeam:    v.Team,
		Bot:       v.Bot,
		Location:  v.Location,
		Speed:     v.Speed,
		Details:   v.Details,
	}
}

func (v RuleViolation) String() string {
	if v.Bot != nil {
		return fmt.Sprintf("%s by %s", v.Type, v.Bot)
	}
	return fmt.Sprintf("%s by %s", v.Type, v.Team)
}

// RefboxCommand is one decision handed to the protocol client: a referee
// command, a game event report, or both.
type RefboxCommand struct {
	Command Command    `json:"command"`
	Event   *GameEvent `json:"event,omitempty"`
	// Designation is the placement target of a ball placement command.
	Designation *Vec2 `json:"designation,omitempty"`
}

// NewCommand builds a command without event payload.
func NewCommand(c Command) RefboxCommand {
	return RefboxCommand{Command: c}
}

// NewEventReport builds an event-only report.
func NewEventReport(e *GameEvent) RefboxCommand {
	return RefboxCommand{Command: CommandNone, Event: e}
}

// NewPlacement builds a BALL_PLACEMENT command for team towards target.
func NewPlacement(team TeamColor, target Vec2) RefboxCommand {
	return RefboxCommand{Command: BallPlacementCommand(team), Designation: &target}
}

// HasCommand reports whether a referee command is attached.
func (r RefboxCommand) HasCommand() bool {
	return r.Command != CommandNone
}

func (r RefboxCommand) String() string {
	switch {
	case r.Event != nil && r.HasCommand():
		return fmt.Sprintf("%s (%s)", r.Command, r.Event.Type)
	case r.Event != nil:
		return "event " + r.Event.Type.String()
	default:
		return r.Command.String()
	}
}

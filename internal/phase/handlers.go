package phase

import (
	"time"

	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/pkg/core"
)

type halted struct{}

func (*halted) ID() ID                  { return Halted }
func (*halted) Prepare(*frame.RefFrame) {}
func (*halted) Reset()                  {}

func (*halted) Update(*frame.RefFrame, []core.RuleViolation) Output {
	return Output{}
}

// idle reports violations without issuing referee commands.
type idle struct{}

func (*idle) ID() ID                  { return Idle }
func (*idle) Prepare(*frame.RefFrame) {}
func (*idle) Reset()                  {}

func (*idle) Update(_ *frame.RefFrame, violations []core.RuleViolation) Output {
	var out Output
	for _, v := range violations {
		out.emit(core.NewEventReport(v.Event()))
	}
	return out
}

// running stops the game on violations with a follow-up and awards goals.
// Once it stopped the game it stays silent on further stopping violations
// until the phase is entered again.
type running struct {
	g        *game
	stopSent bool
}

func (*running) ID() ID                  { return Running }
func (*running) Prepare(*frame.RefFrame) {}
func (r *running) Reset()                { r.stopSent = false }

func (r *running) Update(f *frame.RefFrame, violations []core.RuleViolation) Output {
	var out Output
	stoppedNow := false
	for _, v := range violations {
		if stoppedNow {
			out.Suppressed = append(out.Suppressed, v)
			continue
		}
		goalLike := v.Type.IsGoal() || (v.Type.IsBallLeftField() && f.BallInGoal != core.TeamNeutral)
		stopping := goalLike || v.Type.IsBallLeftField() || v.FollowUp.IsPending()
		switch {
		case r.stopSent && stopping:
			out.Suppressed = append(out.Suppressed, v)
		case goalLike:
			cmds, ok := r.goal(f, v)
			if !ok {
				out.Suppressed = append(out.Suppressed, v)
				continue
			}
			for _, c := range cmds {
				out.emit(c)
			}
			r.stopSent, stoppedNow = true, true
		case v.FollowUp.IsPending():
			out.emit(core.RefboxCommand{Command: core.CommandStop, Event: v.Event()})
			r.g.setFollowUp(v.FollowUp)
			r.stopSent, stoppedNow = true, true
		default:
			out.emit(core.NewEventReport(v.Event()))
		}
	}
	return out
}

// goal builds STOP and GOAL for a goal signal. An indirect goal only stops
// the game and schedules the violation's follow-up.
func (r *running) goal(f *frame.RefFrame, v core.RuleViolation) ([]core.RefboxCommand, bool) {
	if v.Type == core.ViolationIndirectGoal {
		r.g.setFollowUp(v.FollowUp)
		return []core.RefboxCommand{{Command: core.CommandStop, Event: v.Event()}}, true
	}

	conceding := f.BallInGoal
	scorer := conceding.Opponent()
	if conceding == core.TeamNeutral {
		scorer, conceding = v.Team, v.Team.Opponent()
	}
	if !scorer.IsNonNeutral() {
		return nil, false
	}

	event := v.Event()
	event.Type = core.ViolationGoal
	event.ByTeam = scorer
	center := core.Vec2{}
	r.g.setFollowUp(core.PendingFollowUp(core.FollowUpAction{
		Type:        core.FollowUpKickoff,
		TeamInFavor: conceding,
		Target:      &center,
	}))
	return []core.RefboxCommand{
		{Command: core.CommandStop, Event: event},
		core.NewCommand(core.GoalCommand(scorer)),
	}, true
}

// stopped waits for the minimum stop time, then requests ball placement
// if the pending follow-up has a target the ball is not at, and otherwise
// issues the follow-up command once all robots keep their distance. As
// PrepareGoalPlacement it makes sure a kickoff is pending.
type stopped struct {
	g  *game
	id ID

	enteredAt     time.Time
	placementSent bool
	commandSent   bool
}

func newStopped(g *game, id ID) *stopped {
	return &stopped{g: g, id: id}
}

func (s *stopped) ID() ID { return s.id }

func (s *stopped) Reset() {
	s.enteredAt = time.Time{}
	s.placementSent = false
	s.commandSent = false
}

func (s *stopped) Prepare(f *frame.RefFrame) {
	s.enteredAt = f.Timestamp()
	if s.id != PrepareGoalPlacement {
		return
	}
	if a, ok := s.g.followUp.Get(); ok && a.Type == core.FollowUpKickoff {
		return
	}
	scorer := core.TeamYellow
	if f.World.Referee.Command == core.CommandGoalBlue {
		scorer = core.TeamBlue
	}
	center := core.Vec2{}
	s.g.setFollowUp(core.PendingFollowUp(core.FollowUpAction{
		Type:        core.FollowUpKickoff,
		TeamInFavor: scorer.Opponent(),
		Target:      &center,
	}))
}

func (s *stopped) Update(f *frame.RefFrame, _ []core.RuleViolation) Output {
	var out Output
	if s.commandSent || f.Timestamp().Sub(s.enteredAt) < s.g.cfg.MinStopTime {
		return out
	}
	action, ok := s.g.followUp.Get()
	if !ok {
		return out
	}

	if action.Target != nil && f.Ball().Pos.DistanceTo(*action.Target) > s.g.cfg.PlacementTolerance {
		if s.placementSent {
			return out
		}
		if placer, ok := s.placer(action); ok {
			s.placementSent = true
			out.emit(core.NewPlacement(placer, *action.Target))
			return out
		}
		// nobody may place any more, restart where the ball is
	}

	cmd := action.Command()
	if cmd == core.CommandNone || !keepDistance(f, s.g.cfg.StopDistance) {
		return out
	}
	s.commandSent = true
	s.g.setFollowUp(core.NoFollowUp())
	out.emit(core.NewCommand(cmd))
	return out
}

// placer picks the team placing the ball: the team in favour unless it
// failed too often, then its opponent.
func (s *stopped) placer(a core.FollowUpAction) (core.TeamColor, bool) {
	candidates := []core.TeamColor{a.TeamInFavor, a.TeamInFavor.Opponent()}
	if !a.TeamInFavor.IsNonNeutral() {
		candidates = []core.TeamColor{core.TeamYellow, core.TeamBlue}
	}
	for _, team := range candidates {
		if s.g.global.Failures(team) < s.g.cfg.MaxPlacementFailures {
			return team, true
		}
	}
	return core.TeamNeutral, false
}

func keepDistance(f *frame.RefFrame, distance float64) bool {
	ball := f.Ball().Pos
	for _, r := range f.World.Robots {
		if r.Pos.DistanceTo(ball) < distance {
			return false
		}
	}
	return true
}

package phase

import (
	"time"

	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// placeBall supervises a ball placement by the team named in the game
// state. A team that already failed MaxPlacementFailures times in a row
// fails again on entry without waiting.
type placeBall struct {
	g *game

	team      core.TeamColor
	enteredAt time.Time
	failNow   bool
	done      bool
}

func (*placeBall) ID() ID { return PlaceBall }

func (p *placeBall) Reset() {
	p.team = core.TeamNeutral
	p.enteredAt = time.Time{}
	p.failNow = false
	p.done = false
}

func (p *placeBall) Prepare(f *frame.RefFrame) {
	p.enteredAt = f.Timestamp()
	p.team = f.GameState().ForTeam
	p.g.global.Stage = PlacementInProgress
	p.failNow = p.g.global.Failures(p.team) >= p.g.cfg.MaxPlacementFailures
}

func (p *placeBall) Update(f *frame.RefFrame, _ []core.RuleViolation) Output {
	var out Output
	if p.done || !p.team.IsNonNeutral() {
		return out
	}
	target := p.target(f)
	if p.failNow {
		out.emit(p.fail(f, target))
		return out
	}
	if target == nil {
		return out
	}
	if p.placed(f, *target) {
		p.done = true
		p.g.global.RecordSuccess(p.team)
		out.emit(core.RefboxCommand{
			Command: core.CommandStop,
			Event: &core.GameEvent{
				Type:      core.ViolationPlacementSucceeded,
				Timestamp: f.Timestamp(),
				ByTeam:    p.team,
				Location:  target,
			},
		})
		return out
	}
	if f.Timestamp().Sub(p.enteredAt) >= p.g.cfg.PlacementTimeout {
		out.emit(p.fail(f, target))
	}
	return out
}

// target is the placement position announced by the controller, or the
// target of the pending follow-up.
func (p *placeBall) target(f *frame.RefFrame) *core.Vec2 {
	if pos := f.World.Referee.PlacementPos; pos != nil {
		return pos
	}
	if a, ok := p.g.followUp.Get(); ok {
		return a.Target
	}
	return nil
}

func (p *placeBall) placed(f *frame.RefFrame, target core.Vec2) bool {
	if !ballRestingAt(f, target, p.g.cfg.PlacementTolerance) {
		return false
	}
	ball := f.Ball().Pos
	for _, r := range f.World.TeamRobots(p.team) {
		if r.Pos.DistanceTo(ball)-f.Field.BotRadius < p.g.cfg.PlacementRobotDistance {
			return false
		}
	}
	return true
}

// fail counts the failure and hands the restart to the non-offending team.
// When that team is already in favour the failure is reported as neutral
// and the pending follow-up stays.
func (p *placeBall) fail(f *frame.RefFrame, target *core.Vec2) core.RefboxCommand {
	p.done = true
	count := p.g.global.RecordFailure(p.team)
	p.g.logger.Info("ball placement failed", "team", p.team.String(), "consecutiveFailures", count)

	event := &core.GameEvent{
		Type:      core.ViolationPlacementFailed,
		Timestamp: f.Timestamp(),
		ByTeam:    p.team,
		Location:  target,
	}
	action, pending := p.g.followUp.Get()
	switch {
	case pending && action.TeamInFavor != p.team && action.TeamInFavor.IsNonNeutral():
		event.ByTeam = core.TeamNeutral
	case pending:
		p.g.setFollowUp(core.PendingFollowUp(core.FollowUpAction{
			Type:        core.FollowUpIndirectFree,
			TeamInFavor: p.team.Opponent(),
			Target:      action.Target,
		}))
	default:
		p.g.setFollowUp(core.PendingFollowUp(core.FollowUpAction{
			Type:        core.FollowUpIndirectFree,
			TeamInFavor: p.team.Opponent(),
			Target:      target,
		}))
	}
	return core.RefboxCommand{Command: core.CommandStop, Event: event}
}

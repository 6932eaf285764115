package phase

import (
	"time"

	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// readiness decides whether the field is set up for the restart.
type readiness func(f *frame.RefFrame, cfg Config) bool

// prepare handles PREPARE_KICKOFF and PREPARE_PENALTY: after the minimum
// wait it requires the field to stay ready for ReadyWaitTime before it
// issues NORMAL_START, once per entry. The operator proceed flag skips the
// wait.
type prepare struct {
	g     *game
	id    ID
	ready readiness

	enteredAt  time.Time
	readySince time.Time
	sent       bool
}

func newPrepare(g *game, id ID, ready readiness) *prepare {
	return &prepare{g: g, id: id, ready: ready}
}

func (p *prepare) ID() ID { return p.id }

func (p *prepare) Reset() {
	p.enteredAt = time.Time{}
	p.readySince = time.Time{}
	p.sent = false
}

func (p *prepare) Prepare(f *frame.RefFrame) {
	p.enteredAt = f.Timestamp()
}

func (p *prepare) Update(f *frame.RefFrame, _ []core.RuleViolation) Output {
	var out Output
	if p.sent {
		return out
	}
	if p.g.proceed {
		p.g.proceed = false
		p.sent = true
		out.emit(core.NewCommand(core.CommandNormalStart))
		return out
	}

	now := f.Timestamp()
	if now.Sub(p.enteredAt) < p.g.cfg.MinWaitTime {
		return out
	}
	if !p.ready(f, p.g.cfg) {
		p.readySince = time.Time{}
		return out
	}
	if p.readySince.IsZero() {
		p.readySince = now
	}
	if now.Sub(p.readySince) >= p.g.cfg.ReadyWaitTime {
		p.sent = true
		out.emit(core.NewCommand(core.CommandNormalStart))
	}
	return out
}

func ballRestingAt(f *frame.RefFrame, spot core.Vec2, tolerance float64) bool {
	ball := f.Ball()
	return ball.Visible && !f.BallStationarySince.IsZero() && ball.Pos.DistanceTo(spot) <= tolerance
}

// kickoffReady requires the ball resting on the centre spot, every robot on
// its own half and the defending team outside the centre circle.
func kickoffReady(f *frame.RefFrame, cfg Config) bool {
	if !ballRestingAt(f, core.Vec2{}, cfg.KickoffTolerance) {
		return false
	}
	kicking := f.GameState().ForTeam
	for _, r := range f.World.Robots {
		if !f.Sides.IsOnOwnHalf(r.ID.Team, r.Pos) {
			return false
		}
		if r.ID.Team != kicking && r.Pos.Length() < f.Field.CenterCircleRadius {
			return false
		}
	}
	return true
}

// penaltyReady requires the ball resting on the penalty mark and every
// robot apart from the kicker and the keeper away from the ball.
func penaltyReady(f *frame.RefFrame, cfg Config) bool {
	attacker := f.GameState().ForTeam
	if !attacker.IsNonNeutral() {
		return false
	}
	if !ballRestingAt(f, f.Field.PenaltyMark(attacker, f.Sides), cfg.KickoffTolerance) {
		return false
	}
	ball := f.Ball().Pos
	kicker, hasKicker := closest(f.World.TeamRobots(attacker), ball)
	keeper, hasKeeper := closest(f.World.TeamRobots(attacker.Opponent()), f.Field.GoalCenter(attacker.Opponent(), f.Sides))
	for _, r := range f.World.Robots {
		if (hasKicker && r.ID == kicker) || (hasKeeper && r.ID == keeper) {
			continue
		}
		if r.Pos.DistanceTo(ball) < cfg.PenaltyDistance {
			return false
		}
	}
	return true
}

func closest(robots []core.Robot, p core.Vec2) (core.BotID, bool) {
	var best core.BotID
	found := false
	bestDist := 0.0
	for _, r := range robots {
		if d := r.Pos.DistanceTo(p); !found || d < bestDist {
			best, bestDist, found = r.ID, d, true
		}
	}
	return best, found
}

package violation

import (
	"fmt"
	"math"
	"time"

	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/pkg/core"
)

func runningOnly(s core.GameState) bool {
	return s.Is(core.StateRunning)
}

func ptr[T any](v T) *T {
	return &v
}

// freeKickFor schedules a direct free kick for team at p moved into the field.
func freeKickFor(team core.TeamColor, p core.Vec2, f *frame.RefFrame, margin float64) core.FollowUp {
	if !team.IsNonNeutral() {
		return core.NoFollowUp()
	}
	target := f.Field.ClosestPointInField(p, margin)
	return core.PendingFollowUp(core.FollowUpAction{
		Type:        core.FollowUpDirectFree,
		TeamInFavor: team,
		Target:      &target,
	})
}

// possibleGoal fires once when the ball enters a goal.
type possibleGoal struct {
	cfg Config
}

func (*possibleGoal) Type() DetectorType               { return DetectorPossibleGoal }
func (*possibleGoal) Priority() int                    { return DetectorPossibleGoal.Priority() }
func (*possibleGoal) IsActiveIn(s core.GameState) bool { return runningOnly(s) }
func (*possibleGoal) Reset()                           {}

func (d *possibleGoal) Update(f *frame.RefFrame, _ []core.RuleViolation) (core.RuleViolation, bool) {
	conceding := f.BallInGoal
	if conceding == core.TeamNeutral || f.Previous.BallInGoal == conceding {
		return core.RuleViolation{}, false
	}
	scorer := conceding.Opponent()
	v := core.RuleViolation{
		Type:      core.ViolationGoal,
		Timestamp: f.Timestamp(),
		Team:      scorer,
		Location:  ptr(f.Ball().Pos),
	}
	if f.LastTouch != nil {
		v.Bot = ptr(f.LastTouch.Bot)
	}

	if restart, ok := f.LastRestart(); ok && restart.State == core.StateIndirectFree &&
		restart.ForTeam == scorer && len(f.RestartTouches) <= 1 {
		v.Type = core.ViolationIndirectGoal
		v.Details = "goal scored directly from an indirect free kick"
		v.FollowUp = freeKickFor(conceding, f.Ball().Pos, f, d.cfg.FreeKickMargin)
		return v, true
	}

	center := core.Vec2{}
	v.FollowUp = core.PendingFollowUp(core.FollowUpAction{
		Type:        core.FollowUpKickoff,
		TeamInFavor: conceding,
		Target:      &center,
	})
	return v, true
}

// ballLeftField fires when the ball leaves the field and no goal was
// detected in the same tick.
type ballLeftField struct {
	cfg Config
}

func (*ballLeftField) Type() DetectorType               { return DetectorBallLeftField }
func (*ballLeftField) Priority() int                    { return DetectorBallLeftField.Priority() }
func (*ballLeftField) IsActiveIn(s core.GameState) bool { return runningOnly(s) }
func (*ballLeftField) Reset()                           {}

func (d *ballLeftField) Update(f *frame.RefFrame, soFar []core.RuleViolation) (core.RuleViolation, bool) {
	if !f.BallLeftField || f.Previous.BallLeftField || f.BallExit == nil {
		return core.RuleViolation{}, false
	}
	for _, v := range soFar {
		if v.Type.IsGoal() {
			return core.RuleViolation{}, false
		}
	}
	exit := f.BallExit
	v := core.RuleViolation{
		Type:      core.ViolationBallLeftFieldTouchLine,
		Timestamp: exit.At,
		Team:      core.TeamNeutral,
		Location:  ptr(exit.Pos),
		FollowUp:  core.NoFollowUp(),
	}
	if exit.OverGoalLine {
		v.Type = core.ViolationBallLeftFieldGoalLine
	}
	if exit.LastTouch != nil {
		v.Team = exit.LastTouch.Bot.Team
		v.Bot = ptr(exit.LastTouch.Bot)
		v.FollowUp = freeKickFor(v.Team.Opponent(), exit.Pos, f, d.cfg.FreeKickMargin)
	}
	return v, true
}

// ballSpeed fires when the ball is faster than allowed shortly after a touch.
type ballSpeed struct {
	cfg      Config
	reported time.Time
}

func (*ballSpeed) Type() DetectorType               { return DetectorBallSpeed }
func (*ballSpeed) Priority() int                    { return DetectorBallSpeed.Priority() }
func (*ballSpeed) IsActiveIn(s core.GameState) bool { return runningOnly(s) }
func (d *ballSpeed) Reset()                         { d.reported = time.Time{} }

func (d *ballSpeed) Update(f *frame.RefFrame, _ []core.RuleViolation) (core.RuleViolation, bool) {
	touch := f.LastTouch
	speed := f.Ball().Speed()
	if touch == nil || !f.Ball().Visible || speed <= d.cfg.MaxBallSpeed {
		return core.RuleViolation{}, false
	}
	if f.Timestamp().Sub(touch.At) > d.cfg.KickTouchWindow || touch.At.Equal(d.reported) {
		return core.RuleViolation{}, false
	}
	d.reported = touch.At
	return core.RuleViolation{
		Type:      core.ViolationBotKickedBallTooFast,
		Timestamp: f.Timestamp(),
		Team:      touch.Bot.Team,
		Bot:       ptr(touch.Bot),
		Location:  ptr(touch.Pos),
		Speed:     speed,
		FollowUp:  freeKickFor(touch.Bot.Team.Opponent(), touch.Pos, f, d.cfg.FreeKickMargin),
	}, true
}

// attackerInDefenseArea fires when a robot gains ball contact inside the
// opponent's defense area.
type attackerInDefenseArea struct {
	cfg Config
}

func (*attackerInDefenseArea) Type() DetectorType { return DetectorAttackerInDefenseArea }
func (*attackerInDefenseArea) Priority() int {
	return DetectorAttackerInDefenseArea.Priority()
}
func (*attackerInDefenseArea) IsActiveIn(s core.GameState) bool { return runningOnly(s) }
func (*attackerInDefenseArea) Reset()                           {}

func (d *attackerInDefenseArea) Update(f *frame.RefFrame, _ []core.RuleViolation) (core.RuleViolation, bool) {
	ball := f.Ball().Pos
	for _, id := range f.JustTouched() {
		defender := id.Team.Opponent()
		if !f.Field.IsInDefenseArea(defender, ball, f.Sides, 0) {
			continue
		}
		sign := f.Sides.GoalSign(defender)
		target := core.Vec2{
			X: sign * (f.Field.Length/2 - f.Field.DefenseAreaDepth - d.cfg.FreeKickMargin),
			Y: ball.Y,
		}
		return core.RuleViolation{
			Type:      core.ViolationAttackerTouchedBallInDefenseArea,
			Timestamp: f.Timestamp(),
			Team:      id.Team,
			Bot:       ptr(id),
			Location:  ptr(ball),
			FollowUp:  freeKickFor(defender, target, f, d.cfg.FreeKickMargin),
		}, true
	}
	return core.RuleViolation{}, false
}

type botPair [2]core.BotID

// botCrash fires when two robots of different teams collide faster than the
// crash speed. The robot moving faster towards the other is at fault.
type botCrash struct {
	cfg      Config
	reported map[botPair]time.Time
}

func newBotCrash(cfg Config) *botCrash {
	return &botCrash{cfg: cfg, reported: make(map[botPair]time.Time)}
}

func (*botCrash) Type() DetectorType { return DetectorBotCrash }
func (*botCrash) Priority() int      { return DetectorBotCrash.Priority() }
func (*botCrash) IsActiveIn(s core.GameState) bool {
	return s.Is(core.StateRunning, core.StateStop, core.StateDirectFree, core.StateIndirectFree)
}
func (d *botCrash) Reset() { clear(d.reported) }

func (d *botCrash) Update(f *frame.RefFrame, _ []core.RuleViolation) (core.RuleViolation, bool) {
	now := f.Timestamp()
	for _, y := range f.World.TeamRobots(core.TeamYellow) {
		for _, b := range f.World.TeamRobots(core.TeamBlue) {
			dist := y.Pos.DistanceTo(b.Pos)
			if dist > d.cfg.CrashDistance || dist == 0 {
				continue
			}
			// unit vector from yellow to blue
			ux, uy := (b.Pos.X-y.Pos.X)/dist, (b.Pos.Y-y.Pos.Y)/dist
			towardY := y.Vel.X*ux + y.Vel.Y*uy
			towardB := -(b.Vel.X*ux + b.Vel.Y*uy)
			crash := towardY + towardB
			if crash <= d.cfg.CrashSpeed {
				continue
			}
			pair := botPair{y.ID, b.ID}
			if at, ok := d.reported[pair]; ok && now.Sub(at) < d.cfg.CrashCooldown {
				continue
			}
			d.reported[pair] = now

			culprit, victim := y, b
			if towardB > towardY {
				culprit, victim = b, y
			}
			loc := core.Vec2{X: (y.Pos.X + b.Pos.X) / 2, Y: (y.Pos.Y + b.Pos.Y) / 2}
			v := core.RuleViolation{
				Type:      core.ViolationBotCrashUnique,
				Timestamp: now,
				Team:      culprit.ID.Team,
				Bot:       ptr(culprit.ID),
				Location:  &loc,
				Speed:     crash,
				Details:   fmt.Sprintf("crashed into %s", victim.ID),
				FollowUp:  core.NoFollowUp(),
			}
			if f.GameState().Is(core.StateRunning) {
				v.FollowUp = freeKickFor(victim.ID.Team, loc, f, d.cfg.FreeKickMargin)
			}
			return v, true
		}
	}
	return core.RuleViolation{}, false
}

// botStopSpeed fires once per robot and activation when a robot stays
// faster than the stop speed after the grace time.
type botStopSpeed struct {
	cfg       Config
	fastSince map[core.BotID]time.Time
	reported  map[core.BotID]bool
}

func newBotStopSpeed(cfg Config) *botStopSpeed {
	return &botStopSpeed{
		cfg:       cfg,
		fastSince: make(map[core.BotID]time.Time),
		reported:  make(map[core.BotID]bool),
	}
}

func (*botStopSpeed) Type() DetectorType               { return DetectorBotStopSpeed }
func (*botStopSpeed) Priority() int                    { return DetectorBotStopSpeed.Priority() }
func (*botStopSpeed) IsActiveIn(s core.GameState) bool { return s.Is(core.StateStop) }

func (d *botStopSpeed) Reset() {
	clear(d.fastSince)
	clear(d.reported)
}

func (d *botStopSpeed) Update(f *frame.RefFrame, _ []core.RuleViolation) (core.RuleViolation, bool) {
	if f.TimeInState() < d.cfg.StopGraceTime {
		return core.RuleViolation{}, false
	}
	now := f.Timestamp()
	var found *core.Robot
	for _, r := range f.World.Robots {
		if r.Speed() <= d.cfg.StopSpeed {
			delete(d.fastSince, r.ID)
			continue
		}
		since, ok := d.fastSince[r.ID]
		if !ok {
			d.fastSince[r.ID] = now
			continue
		}
		if found == nil && !d.reported[r.ID] && now.Sub(since) >= d.cfg.StopMinDuration {
			found = &r
		}
	}
	if found == nil {
		return core.RuleViolation{}, false
	}
	d.reported[found.ID] = true
	return core.RuleViolation{
		Type:      core.ViolationBotTooFastInStop,
		Timestamp: now,
		Team:      found.ID.Team,
		Bot:       ptr(found.ID),
		Location:  ptr(found.Pos),
		Speed:     found.Speed(),
		FollowUp:  core.NoFollowUp(),
	}, true
}

// defenderTooClose fires once per robot and activation when a robot of the
// defending team stays too close to the ball at a restart.
type defenderTooClose struct {
	cfg      Config
	reported map[core.BotID]bool
}

func newDefenderTooClose(cfg Config) *defenderTooClose {
	return &defenderTooClose{cfg: cfg, reported: make(map[core.BotID]bool)}
}

func (*defenderTooClose) Type() DetectorType { return DetectorDefenderTooClose }
func (*defenderTooClose) Priority() int      { return DetectorDefenderTooClose.Priority() }
func (*defenderTooClose) IsActiveIn(s core.GameState) bool {
	return s.Is(core.StateDirectFree, core.StateIndirectFree, core.StateKickoff)
}
func (d *defenderTooClose) Reset() { clear(d.reported) }

func (d *defenderTooClose) Update(f *frame.RefFrame, _ []core.RuleViolation) (core.RuleViolation, bool) {
	kicking := f.GameState().ForTeam
	if !kicking.IsNonNeutral() || f.TimeInState() < d.cfg.DefenderGraceTime {
		return core.RuleViolation{}, false
	}
	ball := f.Ball().Pos
	for _, r := range f.World.TeamRobots(kicking.Opponent()) {
		dist := r.Pos.DistanceTo(ball) - f.Field.BotRadius
		if dist >= d.cfg.DefenderDistance || d.reported[r.ID] {
			continue
		}
		d.reported[r.ID] = true
		return core.RuleViolation{
			Type:      core.ViolationDefenderTooCloseToKickPoint,
			Timestamp: f.Timestamp(),
			Team:      r.ID.Team,
			Bot:       ptr(r.ID),
			Location:  ptr(r.Pos),
			Details:   fmt.Sprintf("%.0f mm from the ball", math.Max(dist, 0)),
			FollowUp:  core.NoFollowUp(),
		}, true
	}
	return core.RuleViolation{}, false
}

// noProgress fires once per stationary period when the ball rests longer
// than the timeout during play.
type noProgress struct {
	cfg      Config
	reported time.Time
}

func (*noProgress) Type() DetectorType               { return DetectorNoProgress }
func (*noProgress) Priority() int                    { return DetectorNoProgress.Priority() }
func (*noProgress) IsActiveIn(s core.GameState) bool { return runningOnly(s) }
func (d *noProgress) Reset()                         { d.reported = time.Time{} }

func (d *noProgress) Update(f *frame.RefFrame, _ []core.RuleViolation) (core.RuleViolation, bool) {
	since := f.BallStationarySince
	if since.IsZero() || since.Equal(d.reported) || f.BallStationaryFor() < d.cfg.NoProgressTimeout {
		return core.RuleViolation{}, false
	}
	d.reported = since
	target := f.Ball().Pos
	return core.RuleViolation{
		Type:      core.ViolationNoProgressInGame,
		Timestamp: f.Timestamp(),
		Team:      core.TeamNeutral,
		Location:  ptr(target),
		FollowUp: core.PendingFollowUp(core.FollowUpAction{
			Type:        core.FollowUpForceStart,
			TeamInFavor: core.TeamNeutral,
			Target:      &target,
		}),
	}, true
}

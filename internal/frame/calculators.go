package frame

import (
	"math"
	"slices"

	"github.com/robocup-autoref/autoref/pkg/core"
)

type gameStateHistory struct {
	max int
}

func (gameStateHistory) Name() string { return "GameStateHistory" }

func (c gameStateHistory) Calculate(prev, next *RefFrame) {
	state := next.GameState()
	if prev == nil {
		next.StateHistory = []core.GameState{state}
		next.StateEnteredAt = next.Timestamp()
		return
	}
	if len(prev.StateHistory) > 0 && prev.StateHistory[0] == state {
		next.StateHistory = prev.StateHistory
		next.StateEnteredAt = prev.StateEnteredAt
		return
	}
	history := make([]core.GameState, 0, c.max)
	history = append(history, state)
	for _, s := range prev.StateHistory {
		if len(history) == c.max {
			break
		}
		history = append(history, s)
	}
	next.StateHistory = history
	next.StateEnteredAt = next.Timestamp()
}

// ballLeftField flags the ball as out once it is further than out outside
// the field and clears the flag only once it is further than in inside.
type ballLeftField struct {
	out, in float64
}

func (ballLeftField) Name() string { return "BallLeftField" }

func (c ballLeftField) Calculate(prev, next *RefFrame) {
	ball := next.Ball()
	if !ball.Visible {
		if prev != nil {
			next.BallLeftField = prev.BallLeftField
			next.BallExit = prev.BallExit
		}
		return
	}
	wasOut := prev != nil && prev.BallLeftField
	if wasOut {
		if next.Field.IsInsideField(ball.Pos, -c.in) {
			return
		}
		next.BallLeftField = true
		next.BallExit = prev.BallExit
		return
	}
	if next.Field.IsInsideField(ball.Pos, c.out) {
		return
	}
	exit := &BallExit{
		At:           next.Timestamp(),
		Pos:          ball.Pos,
		OverGoalLine: math.Abs(ball.Pos.X) > next.Field.Length/2,
	}
	if prev != nil && prev.LastTouch != nil {
		t := *prev.LastTouch
		exit.LastTouch = &t
	}
	next.BallLeftField = true
	next.BallExit = exit
}

// botBallContact tracks which robots touch the ball with their kicker front.
type botBallContact struct {
	has, gain float64
}

func (botBallContact) Name() string { return "BotBallContact" }

func (c botBallContact) Calculate(prev, next *RefFrame) {
	ball := next.Ball()
	if !ball.Visible {
		// An unseen ball keeps existing contacts but starts none.
		if prev != nil {
			for id, ct := range prev.Contacts {
				if ct.Touching {
					next.Contacts[id] = Contact{Touching: true, Since: ct.Since}
				}
			}
		}
		return
	}
	for _, r := range next.World.Robots {
		d := r.KickerPos(next.Field.Center2Dribbler).DistanceTo(ball.Pos) - next.Field.BallRadius
		var before Contact
		if prev != nil {
			before = prev.Contacts[r.ID]
		}
		switch {
		case before.Touching && d <= c.has:
			next.Contacts[r.ID] = Contact{Touching: true, Since: before.Since}
		case !before.Touching && d <= c.gain:
			next.Contacts[r.ID] = Contact{Touching: true, JustTouched: true, Since: next.Timestamp()}
		}
	}
}

// lastTouch carries the most recent touching robot forward and collects the
// robots that touched the ball since the last restart.
type lastTouch struct{}

func (lastTouch) Name() string { return "LastTouch" }

func (lastTouch) Calculate(prev, next *RefFrame) {
	if prev != nil {
		next.LastTouch = prev.LastTouch
		if !next.StateChanged() || next.GameState().State == core.StateRunning {
			next.RestartTouches = prev.RestartTouches
		}
	}
	for _, id := range next.JustTouched() {
		next.LastTouch = &Touch{Bot: id, At: next.Timestamp(), Pos: next.Ball().Pos}
		if !slices.Contains(next.RestartTouches, id) {
			next.RestartTouches = append(slices.Clone(next.RestartTouches), id)
		}
	}
}

// possibleGoal records the goal the ball is in. A ball that crossed the goal
// line between the posts counts even if it was never sampled inside the goal.
type possibleGoal struct{}

func (possibleGoal) Name() string { return "PossibleGoal" }

func (possibleGoal) Calculate(prev, next *RefFrame) {
	ball := next.Ball()
	if !ball.Visible {
		if prev != nil {
			next.BallInGoal = prev.BallInGoal
		}
		return
	}
	if team := next.Field.GoalContaining(ball.Pos, next.Sides, 0); team != core.TeamNeutral {
		next.BallInGoal = team
		return
	}
	exit := next.BallExit
	if exit != nil && exit.OverGoalLine && math.Abs(exit.Pos.Y) <= next.Field.GoalWidth/2 {
		next.BallInGoal = next.Sides.TeamOfGoal(exit.Pos.X)
	}
}

type ballStationary struct {
	speed float64
}

func (ballStationary) Name() string { return "BallStationary" }

func (c ballStationary) Calculate(prev, next *RefFrame) {
	ball := next.Ball()
	if !ball.Visible {
		if prev != nil {
			next.BallStationarySince = prev.BallStationarySince
		}
		return
	}
	if ball.Speed() >= c.speed {
		return
	}
	if prev != nil && !prev.BallStationarySince.IsZero() {
		next.BallStationarySince = prev.BallStationarySince
		return
	}
	next.BallStationarySince = next.Timestamp()
}

package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocup-autoref/autoref/pkg/core"
)

func TestPreset(t *testing.T) {
	a, err := Preset("divA")
	require.NoError(t, err)
	assert.Equal(t, 12000.0, a.Length)

	b, err := Preset("divB")
	require.NoError(t, err)
	assert.Equal(t, 9000.0, b.Length)
	assert.Equal(t, 1000.0, b.GoalWidth)

	_, err = Preset("divC")
	assert.Error(t, err)
}

func TestIsInsideField(t *testing.T) {
	g := DivisionB()

	tests := []struct {
		name   string
		p      core.Vec2
		margin float64
		want   bool
	}{
		{"center", core.Vec2{}, 0, true},
		{"on touch line", core.Vec2{X: 0, Y: 3000}, 0, true},
		{"just outside", core.Vec2{X: 0, Y: 3010}, 0, false},
		{"outside but within margin", core.Vec2{X: 0, Y: 3010}, 50, true},
		{"inside but shrunk away", core.Vec2{X: 4480, Y: 0}, -50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.IsInsideField(tt.p, tt.margin))
		})
	}
}

func TestSides(t *testing.T) {
	s := Sides{BlueOnPositiveHalf: true}
	assert.Equal(t, 1.0, s.GoalSign(core.TeamBlue))
	assert.Equal(t, -1.0, s.GoalSign(core.TeamYellow))
	assert.Equal(t, core.TeamBlue, s.TeamOfGoal(100))
	assert.Equal(t, core.TeamYellow, s.TeamOfGoal(-100))
	assert.True(t, s.IsOnOwnHalf(core.TeamBlue, core.Vec2{X: 10}))
	assert.False(t, s.IsOnOwnHalf(core.TeamYellow, core.Vec2{X: 10}))
}

func TestGoalContaining(t *testing.T) {
	g := DivisionB()
	s := Sides{BlueOnPositiveHalf: true}

	assert.Equal(t, core.TeamBlue, g.GoalContaining(core.Vec2{X: 4550, Y: 100}, s, 0))
	assert.Equal(t, core.TeamYellow, g.GoalContaining(core.Vec2{X: -4550, Y: -100}, s, 0))
	// behind the goal line but outside the posts
	assert.Equal(t, core.TeamNeutral, g.GoalContaining(core.Vec2{X: 4550, Y: 800}, s, 0))
	// still on the field
	assert.Equal(t, core.TeamNeutral, g.GoalContaining(core.Vec2{X: 4400, Y: 0}, s, 0))
}

func TestDefenseArea(t *testing.T) {
	g := DivisionB()
	s := Sides{BlueOnPositiveHalf: false}

	assert.True(t, g.IsInDefenseArea(core.TeamBlue, core.Vec2{X: -4000, Y: 0}, s, 0))
	assert.False(t, g.IsInDefenseArea(core.TeamYellow, core.Vec2{X: -4000, Y: 0}, s, 0))
	assert.False(t, g.IsInDefenseArea(core.TeamBlue, core.Vec2{X: -3400, Y: 0}, s, 0))
	assert.True(t, g.IsInDefenseArea(core.TeamBlue, core.Vec2{X: -3400, Y: 0}, s, 150))
}

func TestPenaltyMark(t *testing.T) {
	g := DivisionB()
	s := Sides{BlueOnPositiveHalf: true}
	// yellow attacks the blue goal on positive x
	assert.Equal(t, core.Vec2{X: -1500}, g.PenaltyMark(core.TeamYellow, s))
}

func TestClosestPointInField(t *testing.T) {
	g := DivisionB()
	assert.Equal(t, core.Vec2{X: 4300, Y: -2800}, g.ClosestPointInField(core.Vec2{X: 5000, Y: -3500}, 200))
}

func TestRect_CornerOrder(t *testing.T) {
	e := rect(core.Vec2{X: 500, Y: -200}.XY(), core.Vec2{X: -500, Y: 200}.XY())

	assert.True(t, e.Contains(core.Vec2{}.XY()))
	assert.True(t, e.Contains(core.Vec2{X: -500, Y: -200}.XY()))
	assert.False(t, e.Contains(core.Vec2{X: 0, Y: 201}.XY()))
}

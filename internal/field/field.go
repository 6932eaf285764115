// Package field describes the playing field and answers the geometric
// questions the referee logic needs (inside field, inside a goal, inside a
// defense area). All lengths are in millimetres.
package field

import (
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/robocup-autoref/autoref/pkg/core"
)

// Geometry holds the field dimensions.
type Geometry struct {
	Length              float64 `json:"length" mapstructure:"length"`
	Width               float64 `json:"width" mapstructure:"width"`
	GoalWidth           float64 `json:"goalWidth" mapstructure:"goalWidth"`
	GoalDepth           float64 `json:"goalDepth" mapstructure:"goalDepth"`
	DefenseAreaDepth    float64 `json:"defenseAreaDepth" mapstructure:"defenseAreaDepth"`
	DefenseAreaWidth    float64 `json:"defenseAreaWidth" mapstructure:"defenseAreaWidth"`
	CenterCircleRadius  float64 `json:"centerCircleRadius" mapstructure:"centerCircleRadius"`
	PenaltyMarkDistance float64 `json:"penaltyMarkDistance" mapstructure:"penaltyMarkDistance"`
	BoundaryWidth       float64 `json:"boundaryWidth" mapstructure:"boundaryWidth"`
	BallRadius          float64 `json:"ballRadius" mapstructure:"ballRadius"`
	BotRadius           float64 `json:"botRadius" mapstructure:"botRadius"`
	Center2Dribbler     float64 `json:"center2Dribbler" mapstructure:"center2Dribbler"`
}

// DivisionA returns the division A field.
func DivisionA() Geometry {
	return Geometry{
		Length:              12000,
		Width:               9000,
		GoalWidth:           1800,
		GoalDepth:           180,
		DefenseAreaDepth:    1800,
		DefenseAreaWidth:    3600,
		CenterCircleRadius:  500,
		PenaltyMarkDistance: 8000,
		BoundaryWidth:       300,
		BallRadius:          21.5,
		BotRadius:           90,
		Center2Dribbler:     75,
	}
}

// DivisionB returns the division B field.
func DivisionB() Geometry {
	g := DivisionA()
	g.Length = 9000
	g.Width = 6000
	g.GoalWidth = 1000
	g.DefenseAreaDepth = 1000
	g.DefenseAreaWidth = 2000
	g.PenaltyMarkDistance = 6000
	return g
}

// Preset resolves a named geometry preset.
func Preset(name string) (Geometry, error) {
	switch name {
	case "divA", "":
		return DivisionA(), nil
	case "divB":
		return DivisionB(), nil
	default:
		return Geometry{}, fmt.Errorf("unknown field preset %q", name)
	}
}

// rect builds the axis aligned envelope spanning two corners.
func rect(a, b geom.XY) geom.Envelope {
	e, _ := geom.NewEnvelope([]geom.XY{a, b})
	return e
}

// playArea returns the field rectangle grown by margin on every side. A
// negative margin shrinks it.
func (g Geometry) playArea(margin float64) geom.Envelope {
	hx := g.Length/2 + margin
	hy := g.Width/2 + margin
	return rect(geom.XY{X: -hx, Y: -hy}, geom.XY{X: hx, Y: hy})
}

// IsInsideField reports whether p lies inside the field lines grown by
// margin.
func (g Geometry) IsInsideField(p core.Vec2, margin float64) bool {
	if g.Length/2+margin <= 0 || g.Width/2+margin <= 0 {
		return false
	}
	return g.playArea(margin).Contains(p.XY())
}

// Sides tells which goal belongs to which team.
type Sides struct {
	BlueOnPositiveHalf bool
}

// SidesOf reads the side assignment from a referee message.
func SidesOf(ref core.RefereeMsg) Sides {
	return Sides{BlueOnPositiveHalf: ref.BlueOnPositiveHalf}
}

// GoalSign returns +1 when the team defends the goal on positive x.
func (s Sides) GoalSign(team core.TeamColor) float64 {
	if (team == core.TeamBlue) == s.BlueOnPositiveHalf {
		return 1
	}
	return -1
}

// TeamOfGoal returns the team defending the goal on the side of x.
func (s Sides) TeamOfGoal(x float64) core.TeamColor {
	blueSign := s.GoalSign(core.TeamBlue)
	if math.Signbit(x) == math.Signbit(blueSign) {
		return core.TeamBlue
	}
	return core.TeamYellow
}

// GoalCenter returns the centre of the goal line defended by team.
func (g Geometry) GoalCenter(team core.TeamColor, s Sides) core.Vec2 {
	return core.Vec2{X: s.GoalSign(team) * g.Length / 2}
}

// goalBox is the area behind the goal line inside the goal posts, grown by margin.
func (g Geometry) goalBox(sign, margin float64) geom.Envelope {
	line := sign * g.Length / 2
	back := sign * (g.Length/2 + g.GoalDepth + margin)
	hy := g.GoalWidth/2 + margin
	return rect(geom.XY{X: line, Y: -hy}, geom.XY{X: back, Y: hy})
}

// GoalContaining returns the team whose goal contains p, or TeamNeutral.
func (g Geometry) GoalContaining(p core.Vec2, s Sides, margin float64) core.TeamColor {
	for _, team := range []core.TeamColor{core.TeamYellow, core.TeamBlue} {
		box := g.goalBox(s.GoalSign(team), margin)
		if math.Abs(p.X) > g.Length/2 && box.Contains(p.XY()) {
			return team
		}
	}
	return core.TeamNeutral
}

// DefenseArea returns the defense area of team grown by margin.
func (g Geometry) DefenseArea(team core.TeamColor, s Sides, margin float64) geom.Envelope {
	sign := s.GoalSign(team)
	line := sign * (g.Length/2 + margin)
	front := sign * (g.Length/2 - g.DefenseAreaDepth - margin)
	hy := g.DefenseAreaWidth/2 + margin
	return rect(geom.XY{X: front, Y: -hy}, geom.XY{X: line, Y: hy})
}

// IsInDefenseArea reports whether p lies in team's defense area grown by margin.
func (g Geometry) IsInDefenseArea(team core.TeamColor, p core.Vec2, s Sides, margin float64) bool {
	return g.DefenseArea(team, s, margin).Contains(p.XY())
}

// PenaltyMark returns the penalty mark used by the attacking team. It lies
// PenaltyMarkDistance in front of the defending team's goal centre.
func (g Geometry) PenaltyMark(attacker core.TeamColor, s Sides) core.Vec2 {
	sign := s.GoalSign(attacker.Opponent())
	return core.Vec2{X: sign * (g.Length/2 - g.PenaltyMarkDistance)}
}

// IsOnOwnHalf reports whether p lies on the half of team (the centre line
// counts for both teams).
func (s Sides) IsOnOwnHalf(team core.TeamColor, p core.Vec2) bool {
	return p.X*s.GoalSign(team) >= 0
}

// ClosestPointInField clamps p into the field shrunk by margin.
func (g Geometry) ClosestPointInField(p core.Vec2, margin float64) core.Vec2 {
	hx := g.Length/2 - margin
	hy := g.Width/2 - margin
	return core.Vec2{
		X: math.Max(-hx, math.Min(hx, p.X)),
		Y: math.Max(-hy, math.Min(hy, p.Y)),
	}
}

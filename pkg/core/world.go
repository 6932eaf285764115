// Package core holds the world, referee and decision types shared by the
// autoref pipeline, its storage backends and its wire protocol.
package core

import (
	"fmt"
	"math"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
)

// Vec2 is a planar position or velocity. Positions are in millimetres,
// velocities in metres per second.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// XY converts the vector for use with the geometry helpers.
func (v Vec2) XY() geom.XY {
	return geom.XY{X: v.X, Y: v.Y}
}

// FromXY converts a geometry coordinate back into a Vec2.
func FromXY(xy geom.XY) Vec2 {
	return Vec2{X: xy.X, Y: xy.Y}
}

// Length returns the euclidean norm.
func (v Vec2) Length() float64 {
	return v.XY().Length()
}

// DistanceTo returns the euclidean distance between two points.
func (v Vec2) DistanceTo(o Vec2) float64 {
	return v.XY().Sub(o.XY()).Length()
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%.0f,%.0f)", v.X, v.Y)
}

// TeamColor identifies a team. Neutral is used for events that favour nobody.
type TeamColor int

const (
	TeamNeutral TeamColor = iota
	TeamYellow
	TeamBlue
)

var teamNames = map[TeamColor]string{
	TeamNeutral: "NEUTRAL",
	TeamYellow:  "YELLOW",
	TeamBlue:    "BLUE",
}

func (t TeamColor) String() string {
	if s, ok := teamNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TeamColor(%d)", int(t))
}

// Opponent returns the other team. Neutral has no opponent.
func (t TeamColor) Opponent() TeamColor {
	switch t {
	case TeamYellow:
		return TeamBlue
	case TeamBlue:
		return TeamYellow
	default:
		return TeamNeutral
	}
}

// IsNonNeutral reports whether t names an actual team.
func (t TeamColor) IsNonNeutral() bool {
	return t == TeamYellow || t == TeamBlue
}

func (t TeamColor) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TeamColor) UnmarshalText(b []byte) error {
	v, err := parseEnum(teamNames, b, "team color")
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// BotID identifies a robot on the field.
type BotID struct {
	Number int       `json:"number"`
	Team   TeamColor `json:"team"`
}

func (b BotID) String() string {
	return fmt.Sprintf("%s%d", b.Team.String()[:1], b.Number)
}

// Ball is the tracked ball state.
type Ball struct {
	Pos     Vec2    `json:"pos"`
	Vel     Vec2    `json:"vel"`
	Height  float64 `json:"height"`
	Visible bool    `json:"visible"`
}

// Speed returns the planar ball speed in m/s.
func (b Ball) Speed() float64 {
	return b.Vel.Length()
}

// Robot is one tracked robot.
type Robot struct {
	ID          BotID   `json:"id"`
	Pos         Vec2    `json:"pos"`
	Vel         Vec2    `json:"vel"`
	Orientation float64 `json:"orientation"`
}

// Speed returns the planar robot speed in m/s.
func (r Robot) Speed() float64 {
	return r.Vel.Length()
}

// KickerPos returns the centre of the robot's kicker front given the
// distance from the robot centre to the dribbler.
func (r Robot) KickerPos(center2Dribbler float64) Vec2 {
	return Vec2{
		X: r.Pos.X + math.Cos(r.Orientation)*center2Dribbler,
		Y: r.Pos.Y + math.Sin(r.Orientation)*center2Dribbler,
	}
}

// WorldFrame is one upstream tracker sample. It is immutable once published.
type WorldFrame struct {
	Seq       uint64     `json:"seq"`
	Timestamp time.Time  `json:"timestamp"`
	Ball      Ball       `json:"ball"`
	Robots    []Robot    `json:"robots"`
	Referee   RefereeMsg `json:"referee"`
}

// Robot returns the robot with the given id.
func (f WorldFrame) Robot(id BotID) (Robot, bool) {
	for _, r := range f.Robots {
		if r.ID == id {
			return r, true
		}
	}
	return Robot{}, false
}

// TeamRobots returns all robots of one team.
func (f WorldFrame) TeamRobots(team TeamColor) []Robot {
	var out []Robot
	for _, r := range f.Robots {
		if r.ID.Team == team {
			out = append(out, r)
		}
	}
	return out
}

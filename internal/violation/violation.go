// Package violation runs the pluggable rule-violation detectors over each
// referee frame.
package violation

import (
	"fmt"
	"time"

	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// DetectorType names one detector. The declaration order breaks priority
// ties.
type DetectorType int

const (
	DetectorPossibleGoal DetectorType = iota
	DetectorBallLeftField
	DetectorBallSpeed
	DetectorAttackerInDefenseArea
	DetectorBotCrash
	DetectorBotStopSpeed
	DetectorDefenderTooClose
	DetectorNoProgress
)

var detectorNames = map[DetectorType]string{
	DetectorPossibleGoal:          "POSSIBLE_GOAL",
	DetectorBallLeftField:         "BALL_LEFT_FIELD",
	DetectorBallSpeed:             "BALL_SPEED",
	DetectorAttackerInDefenseArea: "ATTACKER_IN_DEFENSE_AREA",
	DetectorBotCrash:              "BOT_CRASH",
	DetectorBotStopSpeed:          "BOT_STOP_SPEED",
	DetectorDefenderTooClose:      "DEFENDER_TOO_CLOSE",
	DetectorNoProgress:            "NO_PROGRESS",
}

// priorities is the fixed detector priority table. Higher runs first.
var priorities = map[DetectorType]int{
	DetectorPossibleGoal:          10,
	DetectorBallLeftField:         5,
	DetectorBallSpeed:             4,
	DetectorAttackerInDefenseArea: 3,
	DetectorBotCrash:              2,
	DetectorBotStopSpeed:          1,
	DetectorDefenderTooClose:      1,
	DetectorNoProgress:            0,
}

func (d DetectorType) String() string {
	if s, ok := detectorNames[d]; ok {
		return s
	}
	return fmt.Sprintf("DetectorType(%d)", int(d))
}

// Priority returns the table priority of the detector type.
func (d DetectorType) Priority() int {
	return priorities[d]
}

// ParseDetectorType resolves a detector name such as "BOT_CRASH".
func ParseDetectorType(name string) (DetectorType, error) {
	for t, n := range detectorNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown detector %q", name)
}

// AllDetectors lists every detector type in declaration order.
func AllDetectors() []DetectorType {
	out := make([]DetectorType, 0, len(detectorNames))
	for t := DetectorPossibleGoal; t <= DetectorNoProgress; t++ {
		out = append(out, t)
	}
	return out
}

// Detector checks one rule. Update is called once per tick while the
// detector is active and contributes at most one violation.
type Detector interface {
	Type() DetectorType
	IsActiveIn(core.GameState) bool
	Priority() int
	Update(f *frame.RefFrame, soFar []core.RuleViolation) (core.RuleViolation, bool)
	Reset()
}

// Factory builds a detector with default internal state.
type Factory func() Detector

// Config holds the detector thresholds. Distances are in millimetres,
// speeds in m/s.
type Config struct {
	Enabled []string `json:"enabled" mapstructure:"enabled"`

	MaxBallSpeed    float64       `json:"maxBallSpeed" mapstructure:"maxBallSpeed"`
	KickTouchWindow time.Duration `json:"kickTouchWindow" mapstructure:"kickTouchWindow"`

	CrashDistance float64       `json:"crashDistance" mapstructure:"crashDistance"`
	CrashSpeed    float64       `json:"crashSpeed" mapstructure:"crashSpeed"`
	CrashCooldown time.Duration `json:"crashCooldown" mapstructure:"crashCooldown"`

	StopSpeed       float64       `json:"stopSpeed" mapstructure:"stopSpeed"`
	StopGraceTime   time.Duration `json:"stopGraceTime" mapstructure:"stopGraceTime"`
	StopMinDuration time.Duration `json:"stopMinDuration" mapstructure:"stopMinDuration"`

	DefenderDistance  float64       `json:"defenderDistance" mapstructure:"defenderDistance"`
	DefenderGraceTime time.Duration `json:"defenderGraceTime" mapstructure:"defenderGraceTime"`

	NoProgressTimeout time.Duration `json:"noProgressTimeout" mapstructure:"noProgressTimeout"`

	// FreeKickMargin is the distance from the field lines at which free
	// kick positions are placed.
	FreeKickMargin float64 `json:"freeKickMargin" mapstructure:"freeKickMargin"`
}

// DefaultConfig returns the thresholds of the current rule book.
func DefaultConfig() Config {
	return Config{
		MaxBallSpeed:      6.5,
		KickTouchWindow:   500 * time.Millisecond,
		CrashDistance:     200,
		CrashSpeed:        1.5,
		CrashCooldown:     time.Second,
		StopSpeed:         1.5,
		StopGraceTime:     2 * time.Second,
		StopMinDuration:   300 * time.Millisecond,
		DefenderDistance:  500,
		DefenderGraceTime: 2 * time.Second,
		NoProgressTimeout: 10 * time.Second,
		FreeKickMargin:    200,
	}
}

// EnabledDetectors resolves the configured detector names. An empty list
// enables every detector.
func (c Config) EnabledDetectors() ([]DetectorType, error) {
	if len(c.Enabled) == 0 {
		return AllDetectors(), nil
	}
	out := make([]DetectorType, 0, len(c.Enabled))
	for _, name := range c.Enabled {
		t, err := ParseDetectorType(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Factories returns the factory of every built-in detector.
func Factories(cfg Config) map[DetectorType]Factory {
	return map[DetectorType]Factory{
		DetectorPossibleGoal:          func() Detector { return &possibleGoal{cfg: cfg} },
		DetectorBallLeftField:         func() Detector { return &ballLeftField{cfg: cfg} },
		DetectorBallSpeed:             func() Detector { return &ballSpeed{cfg: cfg} },
		DetectorAttackerInDefenseArea: func() Detector { return &attackerInDefenseArea{cfg: cfg} },
		DetectorBotCrash:              func() Detector { return newBotCrash(cfg) },
		DetectorBotStopSpeed:          func() Detector { return newBotStopSpeed(cfg) },
		DetectorDefenderTooClose:      func() Detector { return newDefenderTooClose(cfg) },
		DetectorNoProgress:            func() Detector { return &noProgress{cfg: cfg} },
	}
}

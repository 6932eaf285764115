package frame

import (
	"log/slog"

	"github.com/robocup-autoref/autoref/internal/field"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// Calculator derives one fact of the frame under construction. It may read
// the previous frame and any fact published by an earlier calculator.
type Calculator interface {
	Name() string
	Calculate(prev, next *RefFrame)
}

// Preprocessor runs the fixed calculator chain. It is not safe for
// concurrent use; the runner owns it.
type Preprocessor struct {
	logger      *slog.Logger
	geometry    field.Geometry
	calculators []Calculator
	// failed remembers calculators that already logged a panic.
	failed map[string]bool
}

// NewPreprocessor builds the standard calculator chain.
func NewPreprocessor(logger *slog.Logger, geometry field.Geometry, cfg Config) *Preprocessor {
	if cfg.HistoryLength <= 0 {
		cfg.HistoryLength = DefaultConfig().HistoryLength
	}
	return &Preprocessor{
		logger:   logger,
		geometry: geometry,
		calculators: []Calculator{
			gameStateHistory{max: cfg.HistoryLength},
			ballLeftField{out: cfg.BallOutMargin, in: cfg.BallInMargin},
			botBallContact{has: cfg.HasContactTolerance, gain: cfg.GainContactTolerance},
			lastTouch{},
			possibleGoal{},
			ballStationary{speed: cfg.StationarySpeed},
		},
		failed: make(map[string]bool),
	}
}

// Calculators returns the names of the calculators in run order.
func (p *Preprocessor) Calculators() []string {
	names := make([]string, len(p.calculators))
	for i, c := range p.calculators {
		names[i] = c.Name()
	}
	return names
}

// Process builds the frame following prev. prev is nil on the first frame
// after a (re)start. The link from prev to its own predecessor is severed so
// only one frame of lookback stays reachable.
func (p *Preprocessor) Process(prev *RefFrame, raw core.WorldFrame) *RefFrame {
	next := &RefFrame{
		World:      raw,
		Field:      p.geometry,
		Sides:      field.SidesOf(raw.Referee),
		Previous:   prev,
		BallInGoal: core.TeamNeutral,
		Contacts:   make(map[core.BotID]Contact, len(raw.Robots)),
	}
	if prev != nil {
		prev.Previous = nil
	}
	for _, c := range p.calculators {
		p.run(c, prev, next)
	}
	return next
}

func (p *Preprocessor) run(c Calculator, prev, next *RefFrame) {
	defer func() {
		if r := recover(); r != nil {
			if !p.failed[c.Name()] {
				p.failed[c.Name()] = true
				p.logger.Debug("calculator panicked, fact left at default", "calculator", c.Name(), "panic", r)
			}
		}
	}()
	c.Calculate(prev, next)
}

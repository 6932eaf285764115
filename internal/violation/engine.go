package violation

import (
	"log/slog"
	"slices"

	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// Engine holds the enabled detectors and evaluates them once per tick. It
// is owned by the runner goroutine.
type Engine struct {
	logger    *slog.Logger
	factories map[DetectorType]Factory
	detectors map[DetectorType]Detector
	order     []DetectorType

	hasPrev   bool
	prevState core.GameState
	// failed holds detectors that panicked since the last reset, so a
	// broken detector is logged once instead of every frame.
	failed map[DetectorType]bool
}

// NewEngine builds an engine with the given detectors enabled.
func NewEngine(logger *slog.Logger, factories map[DetectorType]Factory, enabled []DetectorType) *Engine {
	e := &Engine{
		logger:    logger,
		factories: factories,
		detectors: make(map[DetectorType]Detector),
		failed:    make(map[DetectorType]bool),
	}
	e.SetActiveDetectors(enabled)
	return e
}

// Update returns the violations of this tick, highest priority first. The
// first frame after a reset yields nothing.
func (e *Engine) Update(f *frame.RefFrame) []core.RuleViolation {
	state := f.GameState()
	hadPrev, prevState := e.hasPrev, e.prevState
	e.hasPrev, e.prevState = true, state

	active := make([]Detector, 0, len(e.order))
	for _, t := range e.order {
		d := e.detectors[t]
		if !d.IsActiveIn(state) {
			continue
		}
		if !hadPrev || !d.IsActiveIn(prevState) {
			d.Reset()
		}
		active = append(active, d)
	}
	if !hadPrev || f.Previous == nil {
		return nil
	}

	var out []core.RuleViolation
	for _, d := range active {
		if v, ok := e.run(d, f, out); ok {
			out = append(out, v)
		}
	}
	return out
}

func (e *Engine) run(d Detector, f *frame.RefFrame, soFar []core.RuleViolation) (v core.RuleViolation, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if !e.failed[d.Type()] {
				e.failed[d.Type()] = true
				e.logger.Warn("detector panicked", "detector", d.Type().String(), "panic", r)
			}
			v, ok = core.RuleViolation{}, false
		}
	}()
	return d.Update(f, slices.Clone(soFar))
}

// Enable adds a fresh detector of the given type. Enabling an already
// enabled detector does nothing.
func (e *Engine) Enable(t DetectorType) bool {
	if _, ok := e.detectors[t]; ok {
		return false
	}
	factory, ok := e.factories[t]
	if !ok {
		return false
	}
	e.detectors[t] = factory()
	e.sort()
	return true
}

// Disable removes a detector.
func (e *Engine) Disable(t DetectorType) bool {
	if _, ok := e.detectors[t]; !ok {
		return false
	}
	delete(e.detectors, t)
	delete(e.failed, t)
	e.sort()
	return true
}

// SetActiveDetectors replaces the enabled set. Detectors that stay enabled
// keep their state.
func (e *Engine) SetActiveDetectors(types []DetectorType) {
	want := make(map[DetectorType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	for t := range e.detectors {
		if !want[t] {
			delete(e.detectors, t)
		}
	}
	for _, t := range types {
		if _, ok := e.detectors[t]; ok {
			continue
		}
		if factory, ok := e.factories[t]; ok {
			e.detectors[t] = factory()
		}
	}
	e.sort()
}

// Active returns the enabled detectors in evaluation order.
func (e *Engine) Active() []DetectorType {
	return slices.Clone(e.order)
}

// Reset resets every detector and forgets the previous game state.
func (e *Engine) Reset() {
	for _, d := range e.detectors {
		d.Reset()
	}
	e.hasPrev = false
	e.prevState = core.GameState{}
	clear(e.failed)
}

// sort orders detectors by descending priority. Ties keep the declaration
// order of DetectorType.
func (e *Engine) sort() {
	e.order = e.order[:0]
	for t := range e.detectors {
		e.order = append(e.order, t)
	}
	slices.SortFunc(e.order, func(a, b DetectorType) int {
		pa, pb := e.detectors[a].Priority(), e.detectors[b].Priority()
		if pa != pb {
			return pb - pa
		}
		return int(a) - int(b)
	})
}

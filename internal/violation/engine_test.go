package violation

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocup-autoref/autoref/internal/field"
	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/pkg/core"
)

var t0 = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// spy is a scriptable detector recording its calls.
type spy struct {
	typ      DetectorType
	priority int
	states   []core.State
	fire     bool
	panics   bool

	resets  int
	updates int
	soFar   []core.RuleViolation
}

func (s *spy) Type() DetectorType { return s.typ }
func (s *spy) Priority() int      { return s.priority }
func (s *spy) IsActiveIn(g core.GameState) bool {
	return g.Is(s.states...)
}
func (s *spy) Reset() { s.resets++ }

func (s *spy) Update(f *frame.RefFrame, soFar []core.RuleViolation) (core.RuleViolation, bool) {
	s.updates++
	s.soFar = soFar
	if s.panics {
		panic("detector bug")
	}
	if !s.fire {
		return core.RuleViolation{}, false
	}
	return core.RuleViolation{Type: core.ViolationType(s.priority + 1), Timestamp: f.Timestamp()}, true
}

func spyFactories(spies ...*spy) (map[DetectorType]Factory, []DetectorType) {
	factories := make(map[DetectorType]Factory)
	var types []DetectorType
	for _, s := range spies {
		factories[s.typ] = func() Detector { return s }
		types = append(types, s.typ)
	}
	return factories, types
}

// frames produces a chain of frames with the given states, 16 ms apart.
type frames struct {
	pre  *frame.Preprocessor
	last *frame.RefFrame
	ms   int
}

func newFrames() *frames {
	return &frames{pre: frame.NewPreprocessor(discardLogger(), field.DivisionB(), frame.DefaultConfig())}
}

func (fs *frames) next(state core.State) *frame.RefFrame {
	fs.last = fs.pre.Process(fs.last, core.WorldFrame{
		Timestamp: t0.Add(time.Duration(fs.ms) * time.Millisecond),
		Ball:      core.Ball{Visible: true, Pos: core.Vec2{X: -1000}},
		Referee:   core.RefereeMsg{GameState: core.GameState{State: state}},
	})
	fs.ms += 16
	return fs.last
}

func TestEngine_FirstFrameYieldsNothing(t *testing.T) {
	s := &spy{typ: DetectorBotCrash, priority: 2, states: []core.State{core.StateRunning}, fire: true}
	factories, types := spyFactories(s)
	e := NewEngine(discardLogger(), factories, types)
	fs := newFrames()

	assert.Empty(t, e.Update(fs.next(core.StateRunning)))
	assert.Zero(t, s.updates)
	assert.Len(t, e.Update(fs.next(core.StateRunning)), 1)

	e.Reset()
	assert.Empty(t, e.Update(fs.next(core.StateRunning)), "first frame after a reset")
}

func TestEngine_ResetOncePerActivation(t *testing.T) {
	s := &spy{typ: DetectorBotCrash, priority: 2, states: []core.State{core.StateRunning}}
	factories, types := spyFactories(s)
	e := NewEngine(discardLogger(), factories, types)
	fs := newFrames()

	steps := []struct {
		state  core.State
		resets int
	}{
		{core.StateStop, 0},
		{core.StateRunning, 1},
		{core.StateRunning, 1},
		{core.StateRunning, 1},
		{core.StateStop, 1},
		{core.StateStop, 1},
		{core.StateRunning, 2},
		{core.StateRunning, 2},
	}
	for i, step := range steps {
		e.Update(fs.next(step.state))
		assert.Equal(t, step.resets, s.resets, "step %d", i)
	}
}

func TestEngine_ResetWhenActiveInBothStates(t *testing.T) {
	s := &spy{typ: DetectorBotCrash, priority: 2, states: []core.State{core.StateRunning, core.StateStop}}
	factories, types := spyFactories(s)
	e := NewEngine(discardLogger(), factories, types)
	fs := newFrames()

	e.Update(fs.next(core.StateStop))
	e.Update(fs.next(core.StateRunning))
	e.Update(fs.next(core.StateStop))
	assert.Equal(t, 1, s.resets, "no state entry happened after the first frame")
}

func TestEngine_AllPrioritiesReturned(t *testing.T) {
	high := &spy{typ: DetectorPossibleGoal, priority: 10, states: []core.State{core.StateRunning}, fire: true}
	low := &spy{typ: DetectorNoProgress, priority: 1, states: []core.State{core.StateRunning}, fire: true}
	factories, _ := spyFactories(high, low)
	// registration order must not matter
	e := NewEngine(discardLogger(), factories, []DetectorType{DetectorNoProgress, DetectorPossibleGoal})
	fs := newFrames()

	e.Update(fs.next(core.StateRunning))
	got := e.Update(fs.next(core.StateRunning))

	require.Len(t, got, 2)
	assert.Equal(t, core.ViolationType(11), got[0].Type)
	assert.Equal(t, core.ViolationType(2), got[1].Type)
	require.Len(t, low.soFar, 1, "lower priority detectors see earlier results")
	assert.Equal(t, got[0], low.soFar[0])
	assert.Empty(t, high.soFar)
}

func TestEngine_TiesFollowDeclarationOrder(t *testing.T) {
	a := &spy{typ: DetectorBotStopSpeed, priority: 1}
	b := &spy{typ: DetectorDefenderTooClose, priority: 1}
	c := &spy{typ: DetectorBallSpeed, priority: 4}
	factories, _ := spyFactories(a, b, c)

	e := NewEngine(discardLogger(), factories, []DetectorType{DetectorDefenderTooClose, DetectorBotStopSpeed, DetectorBallSpeed})
	assert.Equal(t, []DetectorType{DetectorBallSpeed, DetectorBotStopSpeed, DetectorDefenderTooClose}, e.Active())
}

func TestEngine_DetectorPanicIsContained(t *testing.T) {
	bad := &spy{typ: DetectorPossibleGoal, priority: 10, states: []core.State{core.StateRunning}, panics: true}
	good := &spy{typ: DetectorNoProgress, priority: 0, states: []core.State{core.StateRunning}, fire: true}
	factories, types := spyFactories(bad, good)
	e := NewEngine(discardLogger(), factories, types)
	fs := newFrames()

	e.Update(fs.next(core.StateRunning))
	for range 3 {
		got := e.Update(fs.next(core.StateRunning))
		require.Len(t, got, 1)
		assert.Equal(t, core.ViolationType(1), got[0].Type)
	}
	assert.Equal(t, 3, bad.updates)
}

func TestEngine_EnableBuildsFreshInstance(t *testing.T) {
	built := 0
	factories := map[DetectorType]Factory{
		DetectorBotCrash: func() Detector {
			built++
			return &spy{typ: DetectorBotCrash, priority: 2, states: []core.State{core.StateRunning}}
		},
	}
	e := NewEngine(discardLogger(), factories, nil)
	assert.Empty(t, e.Active())

	assert.True(t, e.Enable(DetectorBotCrash))
	assert.False(t, e.Enable(DetectorBotCrash))
	assert.Equal(t, 1, built)
	assert.Equal(t, []DetectorType{DetectorBotCrash}, e.Active())

	assert.True(t, e.Disable(DetectorBotCrash))
	assert.False(t, e.Disable(DetectorBotCrash))
	assert.Empty(t, e.Active())

	e.Enable(DetectorBotCrash)
	assert.Equal(t, 2, built)
	assert.False(t, e.Enable(DetectorNoProgress), "no factory")
}

func TestEngine_SetActiveDetectorsKeepsSurvivors(t *testing.T) {
	built := map[DetectorType]int{}
	factories := map[DetectorType]Factory{}
	for _, typ := range []DetectorType{DetectorBallSpeed, DetectorBotCrash, DetectorNoProgress} {
		factories[typ] = func() Detector {
			built[typ]++
			return &spy{typ: typ, priority: typ.Priority()}
		}
	}
	e := NewEngine(discardLogger(), factories, []DetectorType{DetectorBallSpeed, DetectorBotCrash})
	e.SetActiveDetectors([]DetectorType{DetectorBotCrash, DetectorNoProgress})

	assert.Equal(t, []DetectorType{DetectorBotCrash, DetectorNoProgress}, e.Active())
	assert.Equal(t, map[DetectorType]int{DetectorBallSpeed: 1, DetectorBotCrash: 1, DetectorNoProgress: 1}, built)
}

func TestParseDetectorType(t *testing.T) {
	for _, typ := range AllDetectors() {
		got, err := ParseDetectorType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseDetectorType("OFFSIDE")
	assert.Error(t, err)
}

func TestConfig_EnabledDetectors(t *testing.T) {
	cfg := DefaultConfig()
	all, err := cfg.EnabledDetectors()
	require.NoError(t, err)
	assert.Equal(t, AllDetectors(), all)

	cfg.Enabled = []string{"BOT_CRASH", "NO_PROGRESS"}
	some, err := cfg.EnabledDetectors()
	require.NoError(t, err)
	assert.Equal(t, []DetectorType{DetectorBotCrash, DetectorNoProgress}, some)

	cfg.Enabled = []string{"nope"}
	_, err = cfg.EnabledDetectors()
	assert.Error(t, err)
}

package runner

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocup-autoref/autoref/internal/dispatcher"
	"github.com/robocup-autoref/autoref/internal/engine"
	"github.com/robocup-autoref/autoref/internal/field"
	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/internal/monitor"
	"github.com/robocup-autoref/autoref/internal/phase"
	"github.com/robocup-autoref/autoref/internal/violation"
	"github.com/robocup-autoref/autoref/pkg/core"
)

var t0 = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type fakeSender struct {
	mu   sync.Mutex
	sent []core.RefboxCommand
}

func (s *fakeSender) SendEvent(cmd core.RefboxCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, cmd)
}

func (s *fakeSender) Connected() bool { return true }
func (s *fakeSender) Pending() int    { return 0 }

func (s *fakeSender) commands() []core.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Command, 0, len(s.sent))
	for _, c := range s.sent {
		out = append(out, c.Command)
	}
	return out
}

type shapeFunc func(time.Time, []engine.Shape)

func (f shapeFunc) Shapes(at time.Time, shapes []engine.Shape) { f(at, shapes) }

func newDeps(sender Sender) Deps {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	global := phase.NewGlobalState()
	return Deps{
		Logger:       logger,
		Preprocessor: frame.NewPreprocessor(logger, field.DivisionB(), frame.DefaultConfig()),
		Violations:   violation.NewEngine(logger, violation.Factories(violation.DefaultConfig()), violation.AllDetectors()),
		Machine:      phase.NewMachine(logger, phase.DefaultConfig(), global),
		Global:       global,
		Policy:       engine.NewEventPolicy(),
		Hub:          monitor.NewHub(),
		Client:       sender,
	}
}

func start(t *testing.T, mode engine.Mode, deps Deps) *Runner {
	r, err := New(Config{TakeTimeout: 5 * time.Millisecond, Simulation: true}, mode, deps)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Stop)
	return r
}

func worldFrame(ms int, x float64) core.WorldFrame {
	return core.WorldFrame{
		Timestamp: t0.Add(time.Duration(ms) * time.Millisecond),
		Ball:      core.Ball{Pos: core.Vec2{X: x, Y: 100}, Visible: true},
		Referee: core.RefereeMsg{
			GameState:          core.GameState{State: core.StateRunning},
			BlueOnPositiveHalf: true,
		},
	}
}

// offerGoal feeds a ball rolling into the blue goal.
func offerGoal(t *testing.T, r *Runner) {
	for i, x := range []float64{4000, 4400, 4600} {
		require.NoError(t, r.Offer(context.Background(), worldFrame(i*16, x)))
	}
}

func waitTicks(t *testing.T, r *Runner, n uint64) {
	require.Eventually(t, func() bool { return r.Snapshot().Ticks >= n }, time.Second, 2*time.Millisecond)
}

// tickUntil feeds still frames until cond holds for the published snapshot.
func tickUntil(t *testing.T, r *Runner, cond func(monitor.Snapshot) bool) {
	ms := 0
	require.Eventually(t, func() bool {
		ms += 16
		if err := r.Offer(context.Background(), worldFrame(ms, 0)); err != nil {
			return false
		}
		return cond(r.Snapshot())
	}, time.Second, 5*time.Millisecond)
}

// modeEvents forwards published mode events.
func modeEvents(hub *monitor.Hub) <-chan monitor.ModeEvent {
	ch := make(chan monitor.ModeEvent, 8)
	hub.OnMode(func(e monitor.ModeEvent) { ch <- e })
	return ch
}

func TestRunner_ActiveSendsDecisions(t *testing.T) {
	sender := &fakeSender{}
	deps := newDeps(sender)
	var events []monitor.CommandEvent
	var mu sync.Mutex
	deps.Hub.OnCommand(func(e monitor.CommandEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	r := start(t, engine.Active, deps)
	offerGoal(t, r)
	waitTicks(t, r, 3)

	assert.Equal(t, []core.Command{core.CommandStop, core.CommandGoalYellow}, sender.commands())
	mu.Lock()
	require.Len(t, events, 2)
	assert.True(t, events[0].Sent)
	mu.Unlock()

	snap := r.Snapshot()
	assert.Equal(t, "active", snap.Mode)
	assert.Equal(t, "RUNNING", snap.Phase)
	assert.Contains(t, snap.FollowUp, "KICKOFF")
	assert.True(t, snap.Connected)
}

func TestRunner_PassiveOnlyWatches(t *testing.T) {
	sender := &fakeSender{}
	deps := newDeps(sender)
	var wouldReport int
	deps.Hub.OnCommand(func(e monitor.CommandEvent) {
		if !e.Sent {
			wouldReport++
		}
	})

	r := start(t, engine.Passive, deps)
	offerGoal(t, r)
	waitTicks(t, r, 3)

	assert.Empty(t, sender.commands())
	r.Stop()
	assert.Equal(t, 1, wouldReport)
}

func TestRunner_PausedConsumesFrames(t *testing.T) {
	sender := &fakeSender{}
	deps := newDeps(sender)
	modes := modeEvents(deps.Hub)
	r := start(t, engine.Active, deps)
	<-modes

	require.NoError(t, r.Pause())
	assert.True(t, (<-modes).Paused)
	offerGoal(t, r)
	waitTicks(t, r, 3)

	assert.Empty(t, sender.commands())
	assert.True(t, r.Snapshot().Paused)
}

func TestRunner_SwitchModeBetweenTicks(t *testing.T) {
	deps := newDeps(&fakeSender{})
	modes := modeEvents(deps.Hub)
	r := start(t, engine.Active, deps)
	assert.Equal(t, engine.Active, (<-modes).Mode)

	require.NoError(t, r.SwitchMode(engine.Passive))
	require.NoError(t, r.SwitchMode(engine.Passive))
	tickUntil(t, r, func(s monitor.Snapshot) bool { return s.Mode == "passive" })

	r.Stop()
	assert.Equal(t, engine.Passive, (<-modes).Mode)
	assert.Empty(t, modes, "switching to the current mode publishes nothing")
}

func TestRunner_TickPanicIsContained(t *testing.T) {
	deps := newDeps(&fakeSender{})
	calls := 0
	deps.Shapes = shapeFunc(func(time.Time, []engine.Shape) {
		calls++
		panic("sink broke")
	})
	r := start(t, engine.Active, deps)

	offerGoal(t, r)
	require.NoError(t, r.Offer(context.Background(), worldFrame(64, 4620)))
	waitTicks(t, r, 4)
	r.Stop()
	assert.Equal(t, 1, calls)
}

func TestRunner_OperatorCommands(t *testing.T) {
	r := start(t, engine.Active, newDeps(nil))
	d, err := dispatcher.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	r.Register(d)

	for _, cmd := range []string{CmdStart, CmdStop, CmdPause, CmdResume, CmdMode, CmdProceed, CmdDetectorEnable, CmdDetectorDisable, CmdStatus} {
		assert.True(t, d.HasHandler(cmd), cmd)
	}

	_, err = d.Dispatch(dispatcher.Event{Command: CmdMode, Args: []string{"passive"}})
	require.NoError(t, err)
	_, err = d.Dispatch(dispatcher.Event{Command: CmdMode})
	assert.Error(t, err)
	_, err = d.Dispatch(dispatcher.Event{Command: CmdDetectorDisable, Args: []string{"BOT_CRASH"}})
	require.NoError(t, err)
	_, err = d.Dispatch(dispatcher.Event{Command: CmdDetectorEnable, Args: []string{"NOPE"}})
	assert.Error(t, err)

	tickUntil(t, r, func(s monitor.Snapshot) bool {
		return s.Mode == "passive" && !slices.Contains(s.Detectors, "BOT_CRASH")
	})

	got, err := d.Dispatch(dispatcher.Event{Command: CmdStatus})
	require.NoError(t, err)
	snap, ok := got.(monitor.Snapshot)
	require.True(t, ok)
	assert.Equal(t, "passive", snap.Mode)
	assert.NotContains(t, snap.Detectors, "BOT_CRASH")
	assert.False(t, snap.Connected)
}

func TestRunner_StartTwice(t *testing.T) {
	r := start(t, engine.Off, newDeps(nil))
	assert.Error(t, r.Start(context.Background()))
}

// Package runner drives the autoref pipeline on a single goroutine: it takes
// world frames from the hand-off, refines them, runs the current engine and
// hands decisions to the protocol client.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/robocup-autoref/autoref/internal/channel"
	"github.com/robocup-autoref/autoref/internal/engine"
	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/internal/monitor"
	"github.com/robocup-autoref/autoref/internal/phase"
	"github.com/robocup-autoref/autoref/internal/violation"
	"github.com/robocup-autoref/autoref/pkg/core"
)

const instrumentationName = "github.com/robocup-autoref/autoref/internal/runner"

// ErrBusy is returned when too many operator requests are waiting.
var ErrBusy = errors.New("runner: too many pending requests")

// Config tunes the loop.
type Config struct {
	TakeTimeout time.Duration `json:"takeTimeout" mapstructure:"takeTimeout"`
	// Simulation keeps every frame instead of only the newest one.
	Simulation bool `json:"simulation" mapstructure:"simulation"`
}

// DefaultConfig returns the live settings.
func DefaultConfig() Config {
	return Config{TakeTimeout: 50 * time.Millisecond}
}

// Sender delivers decisions to the game controller.
type Sender interface {
	SendEvent(cmd core.RefboxCommand)
	Connected() bool
	Pending() int
}

// ShapeSink receives debug shapes for visualizers.
type ShapeSink interface {
	Shapes(at time.Time, shapes []engine.Shape)
}

// Deps holds the pipeline components. Client and Shapes may be nil.
type Deps struct {
	Logger       *slog.Logger
	Preprocessor *frame.Preprocessor
	Violations   *violation.Engine
	Machine      *phase.Machine
	Global       *phase.GlobalState
	Policy       *engine.EventPolicy
	Hub          *monitor.Hub
	Client       Sender
	Shapes       ShapeSink
}

// Runner owns the pipeline. Everything except Offer, the operator requests
// and Snapshot runs on its goroutine.
type Runner struct {
	cfg      Config
	deps     Deps
	logger   *slog.Logger
	frames   channel.Channel[core.WorldFrame]
	requests chan func()

	// runner goroutine only
	eng    engine.Engine
	paused bool
	prev   *frame.RefFrame
	ticks  uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// OTEL metrics
	tickCount  metric.Int64Counter
	tickPanics metric.Int64Counter
	dropped    metric.Int64ObservableCounter
}

// New creates a runner starting in mode.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(cfg Config, mode engine.Mode, deps Deps) (*Runner, error) {
	if cfg.TakeTimeout <= 0 {
		cfg.TakeTimeout = DefaultConfig().TakeTimeout
	}
	r := &Runner{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger,
		frames:   channel.New[core.WorldFrame](cfg.Simulation),
		requests: make(chan func(), 32),
	}
	r.eng = engine.New(mode, r.engineDeps())

	m := otel.Meter(instrumentationName)
	var err error
	r.tickCount, err = m.Int64Counter("runner.ticks", metric.WithDescription("Frames processed"))
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}
	r.tickPanics, err = m.Int64Counter("runner.tick.panics", metric.WithDescription("Ticks aborted by a panic"))
	if err != nil {
		return nil, fmt.Errorf("creating panic counter: %w", err)
	}
	r.dropped, err = m.Int64ObservableCounter("runner.frames.dropped", metric.WithDescription("Frames replaced before being processed"))
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(r.dropped, int64(r.frames.Dropped()))
			return nil
		},
		r.dropped,
	)
	if err != nil {
		return nil, fmt.Errorf("registering dropped callback: %w", err)
	}
	return r, nil
}

func (r *Runner) engineDeps() engine.Deps {
	return engine.Deps{
		Logger:     r.logger,
		Violations: r.deps.Violations,
		Machine:    r.deps.Machine,
		Global:     r.deps.Global,
		Policy:     r.deps.Policy,
	}
}

// Offer hands a frame to the runner. In live mode it never blocks; in
// simulation it waits until the previous frame was taken.
func (r *Runner) Offer(ctx context.Context, f core.WorldFrame) error {
	return r.frames.Send(ctx, f)
}

// Start launches the loop. It stops when ctx is done or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return errors.New("runner already started")
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
	return nil
}

// Stop ends the loop and waits for it.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.frames.Close()
	<-done
}

// Snapshot returns the status published after the last tick.
func (r *Runner) Snapshot() monitor.Snapshot {
	return r.deps.Hub.Snapshot()
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	r.eng.Start()
	r.publishMode()
	defer r.eng.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.applyRequests()

		raw, ok := r.frames.Take(r.cfg.TakeTimeout)
		if !ok {
			select {
			case <-r.frames.Done():
				return
			default:
			}
			continue
		}
		r.tick(raw)
	}
}

func (r *Runner) applyRequests() {
	for {
		select {
		case fn := <-r.requests:
			fn()
		default:
			return
		}
	}
}

// submit queues fn to run between two ticks.
func (r *Runner) submit(fn func()) error {
	select {
	case r.requests <- fn:
		return nil
	default:
		return ErrBusy
	}
}

func (r *Runner) tick(raw core.WorldFrame) {
	defer func() {
		if rec := recover(); rec != nil {
			r.tickPanics.Add(context.Background(), 1)
			r.logger.Error("tick panicked", "panic", rec, "timestamp", raw.Timestamp)
		}
	}()

	f := r.deps.Preprocessor.Process(r.prev, raw)
	r.prev = f
	r.ticks++
	r.tickCount.Add(context.Background(), 1)

	if r.paused {
		r.publishSnapshot(f, nil)
		return
	}
	out := r.eng.Process(f)
	r.publish(f, out)
}

func (r *Runner) publish(f *frame.RefFrame, out engine.Output) {
	hub := r.deps.Hub
	ts, gs := f.Timestamp(), f.GameState()

	for _, v := range out.Violations {
		hub.PublishViolation(monitor.ViolationEvent{Time: ts, GameState: gs, Violation: v})
	}
	if d := out.Decision; d != nil && d.Entered {
		hub.PublishPhase(monitor.PhaseEvent{Time: ts, GameState: gs, Phase: d.Phase, FollowUp: d.FollowUp})
	}
	for _, cmd := range out.Commands {
		r.logger.Info("sending decision", "command", cmd.String(), "gameState", gs.String())
		if r.deps.Client != nil {
			r.deps.Client.SendEvent(cmd)
		}
		hub.PublishCommand(monitor.CommandEvent{Time: ts, GameState: gs, Command: cmd, Sent: r.deps.Client != nil})
	}
	for _, cmd := range out.WouldReport {
		hub.PublishCommand(monitor.CommandEvent{Time: ts, GameState: gs, Command: cmd})
	}
	if r.deps.Shapes != nil && len(out.Shapes) > 0 {
		r.deps.Shapes.Shapes(ts, out.Shapes)
	}
	r.publishSnapshot(f, out.Decision)
}

func (r *Runner) publishSnapshot(f *frame.RefFrame, d *phase.Decision) {
	s := monitor.Snapshot{
		Time:      f.Timestamp(),
		Mode:      r.eng.Mode().String(),
		Paused:    r.paused,
		GameState: f.GameState(),
		FollowUp:  r.deps.Machine.FollowUp().String(),
		Stage:     r.deps.Global.Stage.String(),
		Failures: map[string]int{
			core.TeamYellow.String(): r.deps.Global.Failures(core.TeamYellow),
			core.TeamBlue.String():   r.deps.Global.Failures(core.TeamBlue),
		},
		Ticks:   r.ticks,
		Dropped: r.frames.Dropped(),
	}
	if d != nil {
		s.Phase = d.Phase.String()
	} else if id, ok := r.deps.Machine.Current(); ok && r.eng.Mode() == engine.Active {
		s.Phase = id.String()
	}
	for _, t := range r.deps.Violations.Active() {
		s.Detectors = append(s.Detectors, t.String())
	}
	if c := r.deps.Client; c != nil {
		s.Connected = c.Connected()
		s.Pending = c.Pending()
	}
	r.deps.Hub.SetSnapshot(s)
}

func (r *Runner) publishMode() {
	r.deps.Hub.PublishMode(monitor.ModeEvent{Time: time.Now(), Mode: r.eng.Mode(), Paused: r.paused})
}

// Package engine combines the violation engine and the phase machine into
// the three operating modes of the autoref.
package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/internal/phase"
	"github.com/robocup-autoref/autoref/internal/violation"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// Mode selects what the autoref does with a frame.
type Mode int

const (
	// Off ignores frames.
	Off Mode = iota
	// Active detects violations, drives the phase machine and sends commands.
	Active
	// Passive only detects violations and logs what it would report.
	Passive
)

var modeNames = map[Mode]string{
	Off:     "off",
	Active:  "active",
	Passive: "passive",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode resolves off, active or passive.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return Off, fmt.Errorf("unknown mode %q", s)
}

// ShapeKind is the kind of a debug shape.
type ShapeKind string

const (
	ShapeCircle ShapeKind = "circle"
	ShapeLabel  ShapeKind = "label"
)

// Shape is a debug annotation for visualizers.
type Shape struct {
	Kind   ShapeKind `json:"kind"`
	From   core.Vec2 `json:"from"`
	Radius float64   `json:"radius,omitempty"`
	Label  string    `json:"label,omitempty"`
}

// Output is the result of processing one frame.
type Output struct {
	Mode       Mode
	Violations []core.RuleViolation
	// Decision is only set in active mode.
	Decision *phase.Decision
	// Commands are the decisions to send, already filtered by the event policy.
	Commands []core.RefboxCommand
	// WouldReport holds what passive mode would have sent.
	WouldReport []core.RefboxCommand
	Shapes      []Shape
}

// Engine processes refined frames. It is owned by the runner goroutine.
type Engine interface {
	Mode() Mode
	Start()
	Stop()
	Process(f *frame.RefFrame) Output
}

// Deps are the components an engine works on. They outlive mode switches.
type Deps struct {
	Logger     *slog.Logger
	Violations *violation.Engine
	Machine    *phase.Machine
	Global     *phase.GlobalState
	Policy     *EventPolicy
}

// New builds the engine for mode.
func New(mode Mode, deps Deps) Engine {
	switch mode {
	case Active:
		return &active{deps: deps}
	case Passive:
		return &passive{deps: deps}
	default:
		return off{}
	}
}

type off struct{}

func (off) Mode() Mode                     { return Off }
func (off) Start()                         {}
func (off) Stop()                          {}
func (off) Process(*frame.RefFrame) Output { return Output{Mode: Off} }

type active struct {
	deps Deps
}

func (e *active) Mode() Mode { return Active }

func (e *active) Start() {
	e.deps.Violations.Reset()
	e.deps.Machine.Reset()
	e.deps.Global.Reset()
}

func (e *active) Stop() {}

func (e *active) Process(f *frame.RefFrame) Output {
	violations := e.deps.Violations.Update(f)
	d := e.deps.Machine.Update(f, violations)
	cmds := e.deps.Policy.Filter(d.Commands)
	if dropped := len(d.Commands) - len(cmds); dropped > 0 {
		e.deps.Logger.Debug("commands dropped by event policy", "dropped", dropped)
	}
	return Output{
		Mode:       Active,
		Violations: violations,
		Decision:   &d,
		Commands:   cmds,
		Shapes:     shapes(violations),
	}
}

// passive watches the game. Nothing it finds reaches the game controller.
type passive struct {
	deps Deps
}

func (e *passive) Mode() Mode { return Passive }
func (e *passive) Start()     { e.deps.Violations.Reset() }
func (e *passive) Stop()      {}

func (e *passive) Process(f *frame.RefFrame) Output {
	violations := e.deps.Violations.Update(f)
	out := Output{Mode: Passive, Violations: violations, Shapes: shapes(violations)}
	for _, v := range violations {
		cmd := core.NewEventReport(v.Event())
		e.deps.Logger.Debug("would report", "violation", v.String(), "followUp", v.FollowUp.String())
		out.WouldReport = append(out.WouldReport, cmd)
	}
	return out
}

func shapes(violations []core.RuleViolation) []Shape {
	var out []Shape
	for _, v := range violations {
		if v.Location == nil {
			continue
		}
		out = append(out,
			Shape{Kind: ShapeCircle, From: *v.Location, Radius: 150},
			Shape{Kind: ShapeLabel, From: *v.Location, Label: v.String()},
		)
	}
	return out
}

package engine

import (
	"slices"
	"sync"

	"github.com/robocup-autoref/autoref/pkg/core"
	"github.com/robocup-autoref/autoref/pkg/protocol"
)

// EventPolicy is the per event type accept policy pushed by the game
// controller. It is written by the client reader and read by the runner.
type EventPolicy struct {
	mu      sync.RWMutex
	ignored map[core.ViolationType]bool
}

// NewEventPolicy accepts every event type.
func NewEventPolicy() *EventPolicy {
	return &EventPolicy{ignored: make(map[core.ViolationType]bool)}
}

// Apply merges a config delta. Types not named keep their policy.
func (p *EventPolicy) Apply(delta protocol.ConfigDelta) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range delta.Entries {
		if e.Accept {
			delete(p.ignored, e.EventType)
		} else {
			p.ignored[e.EventType] = true
		}
	}
}

// Accepts reports whether events of type t may be sent.
func (p *EventPolicy) Accepts(t core.ViolationType) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.ignored[t]
}

// Ignored lists the ignored event types in ascending order.
func (p *EventPolicy) Ignored() []core.ViolationType {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.ViolationType, 0, len(p.ignored))
	for t := range p.ignored {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Filter strips ignored events from cmds. A command left with neither an
// event nor a referee command is dropped.
func (p *EventPolicy) Filter(cmds []core.RefboxCommand) []core.RefboxCommand {
	if len(cmds) == 0 {
		return nil
	}
	out := make([]core.RefboxCommand, 0, len(cmds))
	for _, c := range cmds {
		if c.Event != nil && !p.Accepts(c.Event.Type) {
			if !c.HasCommand() {
				continue
			}
			c.Event = nil
		}
		out = append(out, c)
	}
	return out
}

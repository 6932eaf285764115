package logging

import (
	"context"
	"log/slog"
)

// State is the referee status stamped onto every record.
type State struct {
	Mode      string
	GameState string
}

// StateFunc reports the current State. It runs once per record and must be
// cheap.
type StateFunc func() State

// fanout hands every record to each enabled handler. A failing handler does
// not keep the others from seeing the record.
type fanout []slog.Handler

func newFanout(handlers ...slog.Handler) fanout {
	f := make(fanout, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			f = append(f, h)
		}
	}
	return f
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}

// stateHandler adds mode and gameState to records logged while a mode is
// known. Records from before the runner starts carry neither.
type stateHandler struct {
	inner slog.Handler
	state StateFunc
}

func (h *stateHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *stateHandler) Handle(ctx context.Context, r slog.Record) error {
	if s := h.state(); s.Mode != "" {
		r.AddAttrs(slog.String("mode", s.Mode))
		if s.GameState != "" {
			r.AddAttrs(slog.String("gameState", s.GameState))
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *stateHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stateHandler{inner: h.inner.WithAttrs(attrs), state: h.state}
}

func (h *stateHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &stateHandler{inner: h.inner.WithGroup(name), state: h.state}
}

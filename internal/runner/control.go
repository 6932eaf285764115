package runner

import (
	"github.com/robocup-autoref/autoref/internal/engine"
	"github.com/robocup-autoref/autoref/internal/violation"
)

// The operator requests below are safe to call from any goroutine. They are
// applied between two ticks.

// SwitchMode replaces the engine. Switching to the current mode does nothing.
func (r *Runner) SwitchMode(mode engine.Mode) error {
	return r.submit(func() {
		if r.eng.Mode() == mode {
			return
		}
		r.eng.Stop()
		r.eng = engine.New(mode, r.engineDeps())
		r.eng.Start()
		r.logger.Info("mode switched", "mode", mode.String())
		r.publishMode()
	})
}

// Restart resets the detectors, the phase machine and the global state.
func (r *Runner) Restart() error {
	return r.submit(func() {
		r.eng.Start()
		r.logger.Info("engine restarted", "mode", r.eng.Mode().String())
		r.publishMode()
	})
}

// Pause keeps consuming frames but stops evaluating them.
func (r *Runner) Pause() error {
	return r.submit(func() {
		if r.paused {
			return
		}
		r.paused = true
		r.logger.Info("paused")
		r.publishMode()
	})
}

// Resume evaluates frames again.
func (r *Runner) Resume() error {
	return r.submit(func() {
		if !r.paused {
			return
		}
		r.paused = false
		r.logger.Info("resumed")
		r.publishMode()
	})
}

// Proceed lets the next kickoff or penalty start without waiting for the
// robots to be ready.
func (r *Runner) Proceed() error {
	return r.submit(r.deps.Machine.Proceed)
}

// EnableDetector turns a detector on with fresh state.
func (r *Runner) EnableDetector(t violation.DetectorType) error {
	return r.submit(func() {
		if r.deps.Violations.Enable(t) {
			r.logger.Info("detector enabled", "detector", t.String())
		}
	})
}

// DisableDetector turns a detector off.
func (r *Runner) DisableDetector(t violation.DetectorType) error {
	return r.submit(func() {
		if r.deps.Violations.Disable(t) {
			r.logger.Info("detector disabled", "detector", t.String())
		}
	})
}

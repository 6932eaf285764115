package runner

import (
	"errors"

	"github.com/robocup-autoref/autoref/internal/dispatcher"
	"github.com/robocup-autoref/autoref/internal/engine"
	"github.com/robocup-autoref/autoref/internal/violation"
)

// Operator commands.
const (
	CmdStart           = ":START:"
	CmdStop            = ":STOP:"
	CmdPause           = ":PAUSE:"
	CmdResume          = ":RESUME:"
	CmdMode            = ":MODE:"
	CmdProceed         = ":PROCEED:"
	CmdDetectorEnable  = ":DETECTOR:ENABLE:"
	CmdDetectorDisable = ":DETECTOR:DISABLE:"
	CmdStatus          = ":STATUS:"
)

var errMissingArg = errors.New("missing argument")

func queued(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return "queued", nil
}

// Register adds the operator commands to d. :STOP: switches the engine off;
// :START: restarts the current engine.
func (r *Runner) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdStart, func(dispatcher.Event) (any, error) {
		return queued(r.Restart())
	}, dispatcher.Logged())

	d.Register(CmdStop, func(dispatcher.Event) (any, error) {
		return queued(r.SwitchMode(engine.Off))
	}, dispatcher.Logged())

	d.Register(CmdPause, func(dispatcher.Event) (any, error) {
		return queued(r.Pause())
	}, dispatcher.Logged())

	d.Register(CmdResume, func(dispatcher.Event) (any, error) {
		return queued(r.Resume())
	}, dispatcher.Logged())

	d.Register(CmdMode, func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 1 {
			return nil, errMissingArg
		}
		mode, err := engine.ParseMode(e.Args[0])
		if err != nil {
			return nil, err
		}
		return queued(r.SwitchMode(mode))
	}, dispatcher.Logged())

	d.Register(CmdProceed, func(dispatcher.Event) (any, error) {
		return queued(r.Proceed())
	}, dispatcher.Logged())

	d.Register(CmdDetectorEnable, r.detectorHandler(r.EnableDetector), dispatcher.Logged())
	d.Register(CmdDetectorDisable, r.detectorHandler(r.DisableDetector), dispatcher.Logged())

	d.Register(CmdStatus, func(dispatcher.Event) (any, error) {
		return r.Snapshot(), nil
	})
}

func (r *Runner) detectorHandler(apply func(violation.DetectorType) error) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 1 {
			return nil, errMissingArg
		}
		t, err := violation.ParseDetectorType(e.Args[0])
		if err != nil {
			return nil, err
		}
		return queued(apply(t))
	}
}

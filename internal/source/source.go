// Package source feeds world frames into the pipeline, either live from a
// tracker or from a recorded file.
package source

import (
	"context"

	"github.com/robocup-autoref/autoref/pkg/core"
)

// Sink receives frames in arrival order. Returning an error stops the source.
type Sink func(ctx context.Context, f core.WorldFrame) error

// Source produces world frames until ctx is done or the input ends.
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

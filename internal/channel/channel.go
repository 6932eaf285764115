// Package channel provides the single-slot hand-offs between a frame
// producer and the runner.
package channel

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("channel closed")

// Receiver provides read access to a hand-off.
type Receiver[T any] interface {
	// Receive exposes the slot for use in select statements. It is never
	// closed; watch Done instead.
	Receive() <-chan T
	Done() <-chan struct{}
	Take(timeout time.Duration) (T, bool)
	Len() int
}

// Sender provides write access to a hand-off.
type Sender[T any] interface {
	Send(ctx context.Context, v T) error
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	// Dropped counts values discarded to make room for newer ones.
	Dropped() uint64
	Close()
}

// take waits up to timeout for a value.
func take[T any](ch <-chan T, done <-chan struct{}, timeout time.Duration) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v, true
	case <-timer.C:
	case <-done:
	}
	var zero T
	return zero, false
}

package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Latest keeps only the newest value. Send never blocks: a value that was
// not taken yet is replaced and counted as dropped.
type Latest[T any] struct {
	ch      chan T
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

// NewLatest creates an empty hand-off.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{ch: make(chan T, 1), done: make(chan struct{})}
}

// Send stores v, discarding the value still waiting in the slot.
func (l *Latest[T]) Send(_ context.Context, v T) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	for {
		select {
		case l.ch <- v:
			return nil
		default:
		}
		select {
		case <-l.ch:
			l.dropped.Add(1)
		default:
		}
	}
}

// Receive returns the receive-only slot
func (l *Latest[T]) Receive() <-chan T {
	return l.ch
}

// Done is closed by Close.
func (l *Latest[T]) Done() <-chan struct{} {
	return l.done
}

// Take waits up to timeout for the newest value.
func (l *Latest[T]) Take(timeout time.Duration) (T, bool) {
	return take(l.ch, l.done, timeout)
}

// Len returns 1 when a value is waiting
func (l *Latest[T]) Len() int {
	return len(l.ch)
}

// Dropped returns how many values were replaced before being taken.
func (l *Latest[T]) Dropped() uint64 {
	return l.dropped.Load()
}

// Close makes further sends fail and wakes a blocked Take.
func (l *Latest[T]) Close() {
	l.once.Do(func() { close(l.done) })
}

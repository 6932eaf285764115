package channel

import (
	"context"
	"sync"
	"time"
)

// Ordered passes every value in order. Send blocks while the slot is full.
type Ordered[T any] struct {
	ch   chan T
	done chan struct{}
	once sync.Once
}

// NewOrdered creates an empty hand-off with room for one value.
func NewOrdered[T any]() *Ordered[T] {
	return &Ordered[T]{ch: make(chan T, 1), done: make(chan struct{})}
}

// Send waits until the slot is free, ctx is done or the hand-off is closed.
func (o *Ordered[T]) Send(ctx context.Context, v T) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}
	select {
	case o.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrClosed
	}
}

// Receive returns the receive-only slot
func (o *Ordered[T]) Receive() <-chan T {
	return o.ch
}

// Done is closed by Close.
func (o *Ordered[T]) Done() <-chan struct{} {
	return o.done
}

// Take waits up to timeout for the next value.
func (o *Ordered[T]) Take(timeout time.Duration) (T, bool) {
	return take(o.ch, o.done, timeout)
}

// Len returns the number of values waiting
func (o *Ordered[T]) Len() int {
	return len(o.ch)
}

// Dropped is always zero.
func (o *Ordered[T]) Dropped() uint64 {
	return 0
}

// Close makes further sends fail and releases a blocked sender.
func (o *Ordered[T]) Close() {
	o.once.Do(func() { close(o.done) })
}

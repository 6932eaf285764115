// Package queue holds the outgoing FIFO shared by the runner and the
// protocol client writer.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Take once the queue is closed.
var ErrClosed = errors.New("queue closed")

// Queue is a generic thread-safe double ended queue. Take blocks until an
// item is available.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	ready  chan struct{}
	done   chan struct{}
	closed bool
}

// New creates a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// signal wakes one blocked Take. Callers hold mu.
func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Push appends items to the back of the queue.
func (q *Queue[T]) Push(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	q.signal()
}

// PushFront puts item back at the head of the queue, so it is the next one
// taken.
func (q *Queue[T]) PushFront(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]T{item}, q.items...)
	q.signal()
}

// Pop removes and returns the first item without blocking.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return item, true
}

// Take removes and returns the first item, waiting until one is pushed, the
// context is done or the queue is closed.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if item, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()

		var zero T
		if closed {
			return zero, ErrClosed
		}
		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close wakes every blocked Take. Items still queued can be drained with
// Pop or GetAndEmpty; Take fails once the queue is empty.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all items from the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// GetAndEmpty returns all items and clears the queue.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}

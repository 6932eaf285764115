//go:build !debug

package channel

// New creates the hand-off for the runner.
// Live play drops stale frames, simulation keeps every frame.
func New[T any](simulation bool) Channel[T] {
	if simulation {
		return NewOrdered[T]()
	}
	return NewLatest[T]()
}

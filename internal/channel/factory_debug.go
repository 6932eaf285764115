//go:build debug

package channel

// New creates the hand-off for the runner.
// In debug builds, frames are never dropped (ignores simulation)
func New[T any](simulation bool) Channel[T] {
	return NewOrdered[T]()
}

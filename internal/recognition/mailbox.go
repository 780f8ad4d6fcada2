package recognition

import "context"

// Mailbox is a single-slot hand-off where the newest value replaces any
// value not yet taken. It has one producer and one consumer.
type Mailbox[T any] struct {
	ch chan T
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, 1)}
}

// Put stores v, discarding a pending value. It reports whether one was
// discarded.
func (m *Mailbox[T]) Put(v T) (replaced bool) {
	select {
	case <-m.ch:
		replaced = true
	default:
	}
	select {
	case m.ch <- v:
	default:
		// only reachable with a second producer; newest still wins next time
	}
	return replaced
}

// Take blocks until a value is available or ctx is done.
func (m *Mailbox[T]) Take(ctx context.Context) (T, bool) {
	select {
	case v := <-m.ch:
		return v, true
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Package bridge carries messages between the audio thread and an editor
// thread without locks. Each direction is a bounded single-producer
// single-consumer ring; overflow drops messages rather than blocking the
// producer.
package bridge

import "sync/atomic"

// Queue is a bounded single-producer single-consumer ring. Push and Pop never
// block and never allocate. Exactly one goroutine may push and exactly one
// may pop; the counters are free-running and wrap modulo 2^32.
type Queue[T any] struct {
	head atomic.Uint32
	tail atomic.Uint32
	mask uint32
	buf  []T
}

// NewQueue returns a ring holding up to capacity elements. capacity must be
// a power of two.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("bridge: queue capacity must be a power of two")
	}
	return &Queue[T]{mask: uint32(capacity) - 1, buf: make([]T, capacity)}
}

// Push appends v. It reports false, dropping v, when the ring is full.
func (q *Queue[T]) Push(v T) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() == uint32(len(q.buf)) {
		return false
	}
	q.buf[tail&q.mask] = v
	q.tail.Store(tail + 1)
	return true
}

// Pop removes the oldest element. ok is false when the ring is empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	head := q.head.Load()
	if head == q.tail.Load() {
		return v, false
	}
	v = q.buf[head&q.mask]
	q.head.Store(head + 1)
	return v, true
}

// Len reports the number of queued elements. Advisory while both ends are
// live.
func (q *Queue[T]) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Cap reports the fixed capacity.
func (q *Queue[T]) Cap() int { return len(q.buf) }

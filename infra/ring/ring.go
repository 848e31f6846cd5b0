// Package ring provides a bounded single-producer single-consumer
// ring used to hand pooled handles from the ingest goroutine to the
// publish worker. Enqueue failing (full ring) is the backpressure
// signal; the caller decides whether to spill or drop.
package ring

import "sync/atomic"

// Ring is a lock-free SPSC ring over a power-of-two buffer. head is
// written only by the producer, tail only by the consumer; the padded
// layout keeps the two counters off one cache line.
type Ring[T any] struct {
	head atomic.Uint64
	_    [56]byte
	tail atomic.Uint64
	_    [56]byte
	buf  []T
	mask uint64
}

// New allocates a ring holding at least size elements, rounded up to
// the next power of two.
func New[T any](size uint64) *Ring[T] {
	n := uint64(1)
	for n < size {
		n <<= 1
	}
	return &Ring[T]{buf: make([]T, n), mask: n - 1}
}

// Enqueue adds an element; returns false if the ring is full.
// Producer side only.
func (r *Ring[T]) Enqueue(v T) bool {
	h := r.head.Load()
	t := r.tail.Load()
	if h-t == uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = v
	r.head.Store(h + 1)
	return true
}

// Dequeue removes one element; ok is false if the ring is empty.
// Consumer side only.
func (r *Ring[T]) Dequeue() (v T, ok bool) {
	t := r.tail.Load()
	h := r.head.Load()
	if t == h {
		return v, false
	}
	v = r.buf[t&r.mask]
	var zero T
	r.buf[t&r.mask] = zero
	r.tail.Store(t + 1)
	return v, true
}

func (r *Ring[T]) Len() int { return int(r.head.Load() - r.tail.Load()) }
func (r *Ring[T]) Cap() int { return len(r.buf) }

func (r *Ring[T]) IsEmpty() bool { return r.head.Load() == r.tail.Load() }
func (r *Ring[T]) IsFull() bool {
	return r.head.Load()-r.tail.Load() == uint64(len(r.buf))
}

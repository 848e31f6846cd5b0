package pool

import (
	"errors"
	"sync/atomic"
	"unsafe"
)

// ErrZeroCapacity is returned by New for a zero-slot pool.
var ErrZeroCapacity = errors.New("pool: capacity must be positive")

// Deallocator is the narrow surface a handle's deleter returns slots
// through. Pool implements it; deleters depend only on this interface
// and the pool's liveness token, never on the concrete pool type.
type Deallocator[T any] interface {
	Deallocate(*T)
}

// slot is one fixed-size storage unit of the slab. While claimed it
// holds a live value in val; while free, next links it into the free
// list. The two interpretations are mutually exclusive and switch on
// claim/release.
//
// val must remain the first field: Deallocate recovers a slot from a
// value pointer by converting the address back.
type slot[T any] struct {
	val  T
	next *slot[T]
}

// Pool is a fixed-capacity, lock-free object pool for values of type T.
//
// The slab is allocated once at construction and never resized or
// relocated. A Pool must not be copied after New.
type Pool[T any] struct {
	slab []slot[T]

	// head is the single source of truth for slot ownership.
	head atomic.Pointer[slot[T]]

	// avail is updated as a separate atomic after each free-list
	// update. It is advisory only: readers may observe a value
	// transiently inconsistent with the true free-list length.
	avail atomic.Uint64

	claims    atomic.Uint64
	releases  atomic.Uint64
	exhausted atomic.Uint64

	capacity uint64
	dtor     func(*T)
	tok      *token[T]
	closed   atomic.Bool
}

// New builds a pool with the given number of slots, all initially
// free. The destructor, if non-nil, runs once for every value before
// its slot is returned (and still runs after Close).
func New[T any](capacity uint64, dtor func(*T)) (*Pool[T], error) {
	if capacity == 0 {
		return nil, ErrZeroCapacity
	}

	p := &Pool[T]{
		slab:     make([]slot[T], capacity),
		capacity: capacity,
		dtor:     dtor,
	}

	for i := uint64(1); i < capacity; i++ {
		p.slab[i-1].next = &p.slab[i]
	}
	p.head.Store(&p.slab[0])
	p.avail.Store(capacity)
	p.tok = newToken[T](p)

	return p, nil
}

// claim pops the free-list head. It retries only against contention,
// never against exhaustion: a nil head returns immediately.
//
// Known limitation: a slot released and reclaimed between the load
// and the CAS can leave a stale next link (the generic lock-free
// stack reuse hazard). Single-word CAS does not rule this out.
func (p *Pool[T]) claim() *slot[T] {
	for {
		s := p.head.Load()
		if s == nil {
			return nil
		}
		if p.head.CompareAndSwap(s, s.next) {
			return s
		}
	}
}

// Construct claims a slot, writes v into it in place, and returns a
// handle wrapping the value plus a deleter bound to this pool. It
// never blocks. On exhaustion the handle is empty but still carries
// the deleter wiring, so it is always safe to Release.
func (p *Pool[T]) Construct(v T) Handle[T] {
	d := deleter[T]{tok: p.tok, dtor: p.dtor}

	s := p.claim()
	if s == nil {
		p.exhausted.Add(1)
		return Handle[T]{del: d}
	}

	p.avail.Add(^uint64(0))
	p.claims.Add(1)
	s.val = v

	return Handle[T]{ptr: &s.val, del: d}
}

// Deallocate pushes the slot holding v back onto the free list and
// bumps the available counter. v must have come from Construct on
// this pool and must not already be free; neither is checked.
func (p *Pool[T]) Deallocate(v *T) {
	if v == nil {
		return
	}

	s := (*slot[T])(unsafe.Pointer(v))
	for {
		old := p.head.Load()
		s.next = old
		if p.head.CompareAndSwap(old, s) {
			break
		}
	}

	p.avail.Add(1)
	p.releases.Add(1)
}

// Destruct runs the destructor over v, zeroes the slot, and returns
// it to the free list. A nil v is a no-op. This is the manual path
// for callers that took ownership out of a handle with Detach.
func (p *Pool[T]) Destruct(v *T) {
	if v == nil {
		return
	}
	if p.dtor != nil {
		p.dtor(v)
	}
	var zero T
	*v = zero
	p.Deallocate(v)
}

// DestructHandle releases h through the pool. Equivalent to
// p.Destruct(h.Detach()).
func (p *Pool[T]) DestructHandle(h *Handle[T]) {
	p.Destruct(h.Detach())
}

// Available reports the current free-slot count. Advisory only: do
// not use it to predict that the next Construct will succeed.
func (p *Pool[T]) Available() uint64 { return p.avail.Load() }

// Capacity reports the fixed slot count supplied at construction.
func (p *Pool[T]) Capacity() uint64 { return p.capacity }

// Stats is a point-in-time snapshot of the pool counters.
type Stats struct {
	Capacity  uint64
	Available uint64
	Claims    uint64
	Releases  uint64
	Exhausted uint64
}

func (p *Pool[T]) Stats() Stats {
	return Stats{
		Capacity:  p.capacity,
		Available: p.avail.Load(),
		Claims:    p.claims.Load(),
		Releases:  p.releases.Load(),
		Exhausted: p.exhausted.Load(),
	}
}

// Close tears the pool down: the identity token is invalidated so
// outstanding deleters stop returning slots, and the free list is
// emptied so later constructs observe exhaustion. Close is
// idempotent. Closing while Construct calls are in flight is a
// caller contract violation, like destroying a pool in use.
func (p *Pool[T]) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.tok.invalidate()
	p.head.Store(nil)
	p.avail.Store(0)
}

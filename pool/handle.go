package pool

import "sync/atomic"

// token is the pool identity cell: the one piece of state shared
// between a pool and every outstanding handle. The pool holds it
// strongly and clears it on Close; deleters hold it as a weak view
// and must resolve it before touching the pool.
type token[T any] struct {
	target atomic.Pointer[Deallocator[T]]
}

func newToken[T any](d Deallocator[T]) *token[T] {
	t := &token[T]{}
	t.target.Store(&d)
	return t
}

// resolve upgrades the weak view to a usable deallocation target.
// It fails once the pool has been closed.
func (t *token[T]) resolve() (Deallocator[T], bool) {
	p := t.target.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

func (t *token[T]) invalidate() { t.target.Store(nil) }

// deleter destroys a claimed value and, if its pool is still alive,
// returns the slot to the free list. It is written once against the
// Deallocator interface and bound to a pool through the token, never
// through the concrete pool type.
type deleter[T any] struct {
	tok  *token[T]
	dtor func(*T)
}

func (d deleter[T]) invoke(v *T) {
	if v == nil {
		return
	}
	if d.dtor != nil {
		d.dtor(v)
	}
	var zero T
	*v = zero

	// Slot return only if the pool still exists. A closed pool's
	// slab is abandoned wholesale, so skipping here leaks nothing.
	if target, ok := d.tok.resolve(); ok {
		target.Deallocate(v)
	}
}

// Handle owns one claimed slot of a Pool. The zero Handle, and any
// handle returned by an exhausted Construct, is empty: Value reports
// nil and Release is a no-op. Copies of a Handle alias the same slot;
// at most one copy may ever be released.
type Handle[T any] struct {
	ptr *T
	del deleter[T]
}

// Value returns the held value, or nil for an empty handle.
func (h *Handle[T]) Value() *T { return h.ptr }

// Release destroys the held value and, if the owning pool is still
// alive, returns its slot to the free list. Releasing an empty or
// already-released handle is a no-op, never a fault.
func (h *Handle[T]) Release() {
	v := h.ptr
	h.ptr = nil
	h.del.invoke(v)
}

// Detach gives up ownership without destroying the value. The caller
// must eventually hand the pointer to Pool.Destruct.
func (h *Handle[T]) Detach() *T {
	v := h.ptr
	h.ptr = nil
	return v
}

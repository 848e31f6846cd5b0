// Package pool implements a fixed-capacity, lock-free object pool:
// a slab of uniformly-sized slots allocated once, threaded by a
// Treiber-stack free list, and claimed/released by many goroutines
// without a global lock.
//
// Handles returned by Construct carry a deleter bound to a weak view
// of the pool's identity token. Releasing a handle after the pool has
// been closed still runs the value's destructor; only the slot return
// is skipped.
//
// The pool package is dependency-free and forms the memory foundation
// for the ingest pipeline built on top of it.
package pool

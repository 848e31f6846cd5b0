package pool

import (
	"sync"
	"testing"
)

func BenchmarkConstructRelease(b *testing.B) {
	p, _ := New[uint64](1024, nil)
	defer p.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h := p.Construct(uint64(i))
		h.Release()
	}
}

func BenchmarkConstructReleaseParallel(b *testing.B) {
	p, _ := New[uint64](1024, nil)
	defer p.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		var i uint64
		for pb.Next() {
			h := p.Construct(i)
			h.Release()
			i++
		}
	})
}

// Baseline against sync.Pool for the same claim/release cycle.
func BenchmarkSyncPoolBaseline(b *testing.B) {
	sp := sync.Pool{New: func() any { return new(uint64) }}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			v := sp.Get().(*uint64)
			sp.Put(v)
		}
	})
}

package sequence

import "sync/atomic"

// Sequencer hands out strictly monotonic event sequence numbers.
// Sequence numbers key the overflow journal, so they must never
// repeat within one journal directory.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer starting after a given value.
// On fresh start → start = 0
// On restart → start = highest seq found in the journal
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence number.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset reseeds the sequencer so the next call to Next returns v+1.
// Called after journal recovery on restart; new sequence numbers must
// continue past everything already on disk.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}

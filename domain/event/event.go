// Package event defines the unit of work flowing through the ingest
// pipeline. Event values live inside pool slots, so the type carries
// no pointers back into pool-owned state.
package event

// Event is one ingested message on its way to the egress topic.
type Event struct {
	Seq        uint64
	Key        []byte
	Payload    []byte
	ReceivedAt int64
}

// Reset drops buffer references so a parked slot does not pin payload
// memory. Used as the pool destructor.
func (e *Event) Reset() { *e = Event{} }

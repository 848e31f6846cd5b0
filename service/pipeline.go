package service

import (
	"context"
	"log"
	"time"

	"slabpool/domain/event"
	"slabpool/infra/metrics"
	"slabpool/infra/overflow"
	"slabpool/infra/ring"
	"slabpool/infra/sequence"
	"slabpool/pool"
)

// Publisher is the live egress path. Satisfied by kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, ev *event.Event) error
}

/*
Pipeline is the ONLY write entry point into the system.

All coordination between:
- pool (slot claims, backpressure)
- ring (handoff to the publish worker)
- overflow journal (durable spill)
happens here.

Submit must be called from a single goroutine (the consumer loop);
the ring is SPSC.
*/
type Pipeline struct {
	pool    *pool.Pool[event.Event]
	ring    *ring.Ring[*pool.Handle[event.Event]]
	journal *overflow.Journal
	pub     Publisher
	seq     *sequence.Sequencer
	mx      *metrics.Collector

	done chan struct{}
}

// NewPipeline wires all dependencies. mx may be nil.
func NewPipeline(
	p *pool.Pool[event.Event],
	r *ring.Ring[*pool.Handle[event.Event]],
	journal *overflow.Journal,
	pub Publisher,
	seq *sequence.Sequencer,
	mx *metrics.Collector,
) *Pipeline {
	return &Pipeline{
		pool:    p,
		ring:    r,
		journal: journal,
		pub:     pub,
		seq:     seq,
		mx:      mx,
		done:    make(chan struct{}),
	}
}

//
// ──────────────────────────────────────────────────────────
// Ingest
// ──────────────────────────────────────────────────────────
//

// Submit assigns a sequence number and claims a pool slot for the
// event. Exhaustion of the pool or the ring diverts the event to the
// overflow journal instead of blocking or dropping it.
func (p *Pipeline) Submit(key, payload []byte) (uint64, error) {
	seq := p.seq.Next()

	h := p.pool.Construct(event.Event{
		Seq:        seq,
		Key:        key,
		Payload:    payload,
		ReceivedAt: time.Now().UnixNano(),
	})
	if h.Value() == nil {
		return seq, p.spill(seq, key, payload)
	}

	if !p.ring.Enqueue(&h) {
		h.Release()
		return seq, p.spill(seq, key, payload)
	}
	return seq, nil
}

func (p *Pipeline) spill(seq uint64, key, payload []byte) error {
	if err := p.journal.Put(seq, key, payload); err != nil {
		return err
	}
	if p.mx != nil {
		p.mx.Spills.Inc()
	}
	return nil
}

//
// ──────────────────────────────────────────────────────────
// Publish worker
// ──────────────────────────────────────────────────────────
//

// Start launches the publish worker. It exits once the context is
// cancelled and the ring is empty; anything still in flight at
// cancellation time is spilled durably rather than dropped.
func (p *Pipeline) Start(ctx context.Context) {
	go p.run(ctx)
}

// Done is closed when the publish worker has exited.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)
	log.Println("[pipeline] publish worker started")

	for {
		hp, ok := p.ring.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				log.Println("[pipeline] publish worker stopped")
				return
			case <-time.After(time.Millisecond):
			}
			continue
		}
		p.publish(ctx, hp)
	}
}

func (p *Pipeline) publish(ctx context.Context, hp *pool.Handle[event.Event]) {
	defer hp.Release()

	ev := hp.Value()
	if ev == nil {
		return
	}

	if err := p.pub.Publish(ctx, ev); err != nil {
		if jerr := p.spill(ev.Seq, ev.Key, ev.Payload); jerr != nil {
			log.Printf("[pipeline] dropped seq=%d: publish: %v, journal: %v",
				ev.Seq, err, jerr)
		}
		return
	}

	if p.mx != nil {
		p.mx.Published.Inc()
	}
}

// Package drainer implements a background job that periodically
// scans the overflow journal for PENDING records and publishes them
// to the egress topic, pacing itself by pool headroom so a drain
// burst cannot starve the live path.
package drainer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/IBM/sarama"

	"slabpool/domain/event"
	"slabpool/infra/metrics"
	"slabpool/infra/overflow"
	"slabpool/pool"
)

var errNoHeadroom = errors.New("drainer: pool exhausted")

type Drainer struct {
	journal  *overflow.Journal
	pool     *pool.Pool[event.Event]
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	mx       *metrics.Collector
}

// ------------------------------------------------
// CONSTRUCTORS
// ------------------------------------------------

// New connects a sarama producer and wires the drainer. mx may be nil.
func New(
	journal *overflow.Journal,
	p *pool.Pool[event.Event],
	brokers []string,
	topic string,
	interval time.Duration,
	mx *metrics.Collector,
) (*Drainer, error) {

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithProducer(journal, p, producer, topic, interval, mx), nil
}

// NewWithProducer wires an already-built producer (used by tests).
func NewWithProducer(
	journal *overflow.Journal,
	p *pool.Pool[event.Event],
	producer sarama.SyncProducer,
	topic string,
	interval time.Duration,
	mx *metrics.Collector,
) *Drainer {
	return &Drainer{
		journal:  journal,
		pool:     p,
		producer: producer,
		topic:    topic,
		interval: interval,
		mx:       mx,
	}
}

// ------------------------------------------------
// DRAIN LOOP
// ------------------------------------------------

func (d *Drainer) Start(ctx context.Context) {
	log.Println("[drainer] started")

	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.DrainOnce()
			}
		}
	}()
}

// DrainOnce walks PENDING records in seq order. Each record claims a
// pool slot for the duration of its publish, so the drain is bounded
// by the same capacity as the live path and backs off as soon as the
// pool runs dry.
func (d *Drainer) DrainOnce() {
	err := d.journal.ScanByState(overflow.StatePending, func(rec overflow.Record) error {
		h := d.pool.Construct(event.Event{
			Seq:     rec.Seq,
			Key:     rec.Key,
			Payload: rec.Payload,
		})
		if h.Value() == nil {
			return errNoHeadroom // resume on the next tick
		}
		defer h.Release()

		return d.publish(h.Value())
	})
	if err != nil && !errors.Is(err, errNoHeadroom) {
		log.Printf("[drainer] scan aborted: %v", err)
	}
}

func (d *Drainer) publish(ev *event.Event) error {
	// SENT before the attempt, so a crash between send and ack is
	// visible on restart.
	if err := d.journal.MarkSent(ev.Seq); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: d.topic,
		Value: sarama.ByteEncoder(ev.Payload),
	}
	if len(ev.Key) > 0 {
		msg.Key = sarama.ByteEncoder(ev.Key)
	}

	if _, _, err := d.producer.SendMessage(msg); err != nil {
		_ = d.journal.Requeue(ev.Seq)
		return nil // retry on a later pass
	}

	if err := d.journal.MarkAcked(ev.Seq); err != nil {
		return err
	}
	if err := d.journal.Delete(ev.Seq); err != nil {
		return err
	}
	if d.mx != nil {
		d.mx.Drains.Inc()
	}
	return nil
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (d *Drainer) Close() error {
	return d.producer.Close()
}

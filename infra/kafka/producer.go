// Package kafka holds the thin ingress/egress clients around the
// pipeline: a Writer for the live egress path and a Reader feeding
// Submit.
package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"slabpool/domain/event"
)

// WriterConfig carries the egress settings. Zero BatchTimeout picks a
// small default suited to the low-latency live path.
type WriterConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg WriterConfig) *Producer {
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: cfg.BatchTimeout,
		},
	}
}

// eventMessage maps a pooled event onto the wire. Partitioning follows
// the caller's key; keyless events fall back to the sequence number so
// they still spread across partitions deterministically. Seq and the
// receive timestamp travel as headers for downstream dedup.
func eventMessage(ev *event.Event) kafka.Message {
	key := ev.Key
	if len(key) == 0 {
		key = []byte(strconv.FormatUint(ev.Seq, 10))
	}
	return kafka.Message{
		Key:   key,
		Value: ev.Payload,
		Headers: []kafka.Header{
			{Key: "seq", Value: []byte(strconv.FormatUint(ev.Seq, 10))},
			{Key: "received_at", Value: []byte(strconv.FormatInt(ev.ReceivedAt, 10))},
		},
	}
}

// Publish writes one event synchronously. The message references the
// event's buffers, so the slot must stay claimed until this returns.
func (p *Producer) Publish(ctx context.Context, ev *event.Event) error {
	return p.writer.WriteMessages(ctx, eventMessage(ev))
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

package kafka

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, group string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  group,
			MinBytes: 1,
			MaxBytes: 10 << 20,
		}),
	}
}

// Run fetches messages and feeds them to fn, committing only after fn
// accepted the message. Exits cleanly on context cancellation.
func (c *Consumer) Run(
	ctx context.Context,
	fn func(key, value []byte) error,
) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if err := fn(m.Key, m.Value); err != nil {
			// Leave uncommitted; the message is re-fetched after
			// a rebalance or restart.
			continue
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			return err
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

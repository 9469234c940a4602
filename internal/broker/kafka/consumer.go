package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/BearBump/CrewTrack/internal/broker/messages"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r messageReader
	// commit is false for group-less readers; kafka-go rejects commits there.
	commit bool
}

// NewConsumer joins groupID when set, otherwise it reads the topic without a
// group. Either way a reader with no committed offset starts at the tail, so
// nothing published before it started is delivered.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		r:      kafka.NewReader(readerConfig(brokers, topic, groupID)),
		commit: groupID != "",
	}
}

func readerConfig(brokers []string, topic, groupID string) kafka.ReaderConfig {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		StartOffset:       kafka.LastOffset,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return cfg
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r, commit: true}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := handler(msg.Key, msg.Value); err != nil {
			// commit only on success, otherwise the message is lost
			return err
		}
		if !c.commit {
			continue
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

// ConsumeLiveEvents decodes each message as a LiveEvent. Undecodable messages
// are committed and skipped.
func (c *Consumer) ConsumeLiveEvents(ctx context.Context, handler func(ctx context.Context, ev messages.LiveEvent) error) error {
	return c.Consume(ctx, func(_, value []byte) error {
		ev, err := messages.DecodeLiveEvent(value)
		if err != nil {
			return nil
		}
		return handler(ctx, ev)
	})
}

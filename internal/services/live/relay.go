package live

import (
	"context"
	"log/slog"

	"github.com/BearBump/CrewTrack/internal/broker/messages"
)

type LiveProducer interface {
	PublishLiveEvent(ctx context.Context, topic string, ev messages.LiveEvent) error
}

type LiveConsumer interface {
	ConsumeLiveEvents(ctx context.Context, handler func(ctx context.Context, ev messages.LiveEvent) error) error
}

// Relay carries events between API instances over Kafka. Publish stamps the
// event with this instance's origin; Run feeds events from other instances
// into the local adapters.
type Relay struct {
	producer LiveProducer
	consumer LiveConsumer
	topic    string
	origin   string
	local    Publisher
}

func NewRelay(producer LiveProducer, consumer LiveConsumer, topic, origin string, local Publisher) *Relay {
	return &Relay{producer: producer, consumer: consumer, topic: topic, origin: origin, local: local}
}

func (r *Relay) Publish(ctx context.Context, ev messages.LiveEvent) error {
	ev.Origin = r.origin
	return r.producer.PublishLiveEvent(ctx, r.topic, ev)
}

func (r *Relay) Run(ctx context.Context) error {
	return r.consumer.ConsumeLiveEvents(ctx, func(ctx context.Context, ev messages.LiveEvent) error {
		if ev.Origin == r.origin {
			return nil
		}
		if err := r.local.Publish(ctx, ev); err != nil {
			slog.Warn("relay live event", "job_id", ev.JobID, "kind", string(ev.Kind), "error", err.Error())
		}
		return nil
	})
}

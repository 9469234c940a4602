package live

import (
	"context"

	"github.com/BearBump/CrewTrack/internal/broker/messages"
)

// Publisher is the single call the state machine and the location ingestor
// make; how observers are connected is an adapter concern.
type Publisher interface {
	Publish(ctx context.Context, ev messages.LiveEvent) error
}

// Fanout publishes to every adapter and returns the first error. A failing
// adapter does not stop the others.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev messages.LiveEvent) error {
	var first error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

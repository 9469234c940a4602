package logchannel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BearBump/CrewTrack/internal/notify"
)

// Channel writes messages to the log instead of delivering them. Used when no
// gateway is configured and in local runs.
type Channel struct {
	mu   sync.Mutex
	sent []notify.Message
}

func New() *Channel { return &Channel{} }

func (c *Channel) Send(_ context.Context, msg notify.Message) error {
	slog.Info("notification",
		"audience", string(msg.Audience),
		"to", msg.To,
		"job_id", msg.JobID,
		"subject", msg.Subject,
	)
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

// Sent returns a copy of everything sent so far.
func (c *Channel) Sent() []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

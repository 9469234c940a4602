package notify

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/models"
)

const (
	DefaultQueue         = "notifications"
	DefaultHandoffBuffer = 256
	DefaultMaxRetry      = 5
)

type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type handoff struct {
	task *asynq.Task
	id   string
}

// Dispatcher hands transitions to the task queue. Callers never wait on the
// queue: the handoff is a bounded channel drained by Run, and a full channel
// drops the notification with a warning.
type Dispatcher struct {
	enq      Enqueuer
	queue    string
	maxRetry int
	ch       chan handoff

	enqueued atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

func NewDispatcher(enq Enqueuer, queue string, buffer, maxRetry int) *Dispatcher {
	if queue == "" {
		queue = DefaultQueue
	}
	if buffer <= 0 {
		buffer = DefaultHandoffBuffer
	}
	if maxRetry <= 0 {
		maxRetry = DefaultMaxRetry
	}
	return &Dispatcher{enq: enq, queue: queue, maxRetry: maxRetry, ch: make(chan handoff, buffer)}
}

func (d *Dispatcher) CheckpointReached(_ context.Context, t models.CheckpointTransition) {
	task, id, err := newCheckpointTask(t)
	if err != nil {
		slog.Error("notify checkpoint", "session_id", t.SessionID, "error", err.Error())
		return
	}
	d.offer(handoff{task: task, id: id})
}

func (d *Dispatcher) Escalated(_ context.Context, p EscalationPayload) {
	task, id, err := newEscalationTask(p)
	if err != nil {
		slog.Error("notify escalation", "job_id", p.JobID, "error", err.Error())
		return
	}
	d.offer(handoff{task: task, id: id})
}

func (d *Dispatcher) offer(h handoff) {
	select {
	case d.ch <- h:
	default:
		d.dropped.Add(1)
		slog.Warn("notification handoff full, dropping", "task", h.task.Type(), "task_id", h.id)
	}
}

// Run drains the handoff until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case h := <-d.ch:
			d.enqueue(ctx, h)
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, h handoff) {
	_, err := d.enq.EnqueueContext(ctx, h.task,
		asynq.Queue(d.queue),
		asynq.MaxRetry(d.maxRetry),
		asynq.TaskID(h.id),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return
	}
	if err != nil {
		d.failed.Add(1)
		slog.Error("enqueue notification", "task", h.task.Type(), "task_id", h.id, "error", err.Error())
		return
	}
	d.enqueued.Add(1)
}

type DispatcherStats struct {
	Pending  int   `json:"pending"`
	Enqueued int64 `json:"enqueued"`
	Dropped  int64 `json:"dropped"`
	Failed   int64 `json:"failed"`
}

func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Pending:  len(d.ch),
		Enqueued: d.enqueued.Load(),
		Dropped:  d.dropped.Load(),
		Failed:   d.failed.Load(),
	}
}

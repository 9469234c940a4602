package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/models"
)

type Repository interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	InsertActivity(ctx context.Context, e models.ActivityEntry) error
}

// Handler runs in track-worker and turns queued tasks into messages and
// activity feed entries.
type Handler struct {
	repo     Repository
	channel  Channel
	opsEmail string
}

func NewHandler(repo Repository, channel Channel, opsEmail string) *Handler {
	return &Handler{repo: repo, channel: channel, opsEmail: opsEmail}
}

func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskCheckpoint, h.HandleCheckpoint)
	mux.HandleFunc(TaskEscalation, h.HandleEscalation)
	return mux
}

func (h *Handler) HandleCheckpoint(ctx context.Context, task *asynq.Task) error {
	var t models.CheckpointTransition
	if err := json.Unmarshal(task.Payload(), &t); err != nil {
		return fmt.Errorf("decode checkpoint payload: %v: %w", err, asynq.SkipRetry)
	}
	rule, ok := RuleFor(t.JobType, t.Status)
	if !ok {
		return fmt.Errorf("no rule for %s/%s: %w", t.JobType, t.Status, asynq.SkipRetry)
	}

	job, err := h.repo.GetJob(ctx, t.JobID)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("job %s: %w", t.JobID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	if rule.NotifyAdmin {
		if err := h.repo.InsertActivity(ctx, models.ActivityEntry{
			JobID:   job.ID,
			JobType: job.Type,
			Kind:    models.ActivityCheckpoint,
			Message: fmt.Sprintf("Crew reached %s", humanize(t.Status)),
		}); err != nil {
			return err
		}
	}

	subject := fmt.Sprintf("Job update: %s", humanize(t.Status))
	if rule.NotifyClient && job.ClientEmail != "" {
		h.send(ctx, Message{Audience: AudienceClient, To: job.ClientEmail, Subject: subject, Body: rule.ClientMessage, JobID: job.ID})
	}
	if rule.NotifyPartner && job.PartnerEmail != nil && *job.PartnerEmail != "" {
		body := fmt.Sprintf("Job for %s reached %s.", job.ClientName, humanize(t.Status))
		h.send(ctx, Message{Audience: AudiencePartner, To: *job.PartnerEmail, Subject: subject, Body: body, JobID: job.ID})
	}
	return nil
}

func (h *Handler) HandleEscalation(ctx context.Context, task *asynq.Task) error {
	var p EscalationPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode escalation payload: %v: %w", err, asynq.SkipRetry)
	}

	msg := "Sign-off escalated: " + p.Reason
	if len(p.DiscrepancyFlags) > 0 {
		msg += " (discrepancies: " + strings.Join(p.DiscrepancyFlags, ", ") + ")"
	}
	if err := h.repo.InsertActivity(ctx, models.ActivityEntry{
		JobID:   p.JobID,
		JobType: p.JobType,
		Kind:    models.ActivityEscalation,
		Message: msg,
	}); err != nil {
		return err
	}

	if h.opsEmail != "" {
		h.send(ctx, Message{
			Audience: AudienceOps,
			To:       h.opsEmail,
			Subject:  fmt.Sprintf("Escalation on %s job %s", p.JobType, p.JobID),
			Body:     msg,
			JobID:    p.JobID,
		})
	}
	return nil
}

func (h *Handler) send(ctx context.Context, msg Message) {
	if h.channel == nil {
		return
	}
	if err := h.channel.Send(ctx, msg); err != nil {
		slog.Warn("send notification", "job_id", msg.JobID, "audience", string(msg.Audience), "error", err.Error())
	}
}

func humanize(c models.Checkpoint) string {
	return strings.ReplaceAll(string(c), "_", " ")
}

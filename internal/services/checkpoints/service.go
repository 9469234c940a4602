package checkpoints

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/BearBump/CrewTrack/internal/broker/messages"
	"github.com/BearBump/CrewTrack/internal/models"
	"github.com/BearBump/CrewTrack/internal/storage/pgtracking"
)

const maxAttempts = 3

var tracer = otel.Tracer("github.com/BearBump/CrewTrack/internal/services/checkpoints")

type Repository interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetSession(ctx context.Context, id string) (*models.TrackingSession, error)
	GetActiveSession(ctx context.Context, jobID string) (*models.TrackingSession, error)
	GetLatestSession(ctx context.Context, jobID string) (*models.TrackingSession, error)
	CreateSession(ctx context.Context, sess *models.TrackingSession) error
	AppendCheckpoint(ctx context.Context, a pgtracking.CheckpointAppend) error
}

type Publisher interface {
	Publish(ctx context.Context, ev messages.LiveEvent) error
}

// Notifier must not block; the dispatcher queues the transition.
type Notifier interface {
	CheckpointReached(ctx context.Context, t models.CheckpointTransition)
}

type AdvanceInput struct {
	// SessionID, or JobID and JobType, address the session.
	SessionID string
	JobID     string
	JobType   models.JobType

	Status    models.Checkpoint
	Timestamp time.Time
	Lat       *float64
	Lng       *float64
	Note      *string

	// CrewTeamID is set for crew callers; the job must be assigned to it.
	CrewTeamID *string
}

type AdvanceResult struct {
	Session    *models.TrackingSession `json:"session"`
	Checkpoint models.CheckpointRecord `json:"checkpoint"`
	// Applied is false for heartbeats and retried completions.
	Applied bool `json:"applied"`
	Started bool `json:"started"`
}

type Service struct {
	repo      Repository
	publisher Publisher
	notifier  Notifier
	now       func() time.Time
}

func New(repo Repository, publisher Publisher, notifier Notifier) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.TrackingSession, error) {
	if id == "" {
		return nil, models.Invalid("sessionId", "is required")
	}
	return s.repo.GetSession(ctx, id)
}

// Advance applies one checkpoint. Concurrent writers to the same session are
// detected by the store; the write is then revalidated against fresh state.
func (s *Service) Advance(ctx context.Context, in AdvanceInput) (*AdvanceResult, error) {
	ctx, span := tracer.Start(ctx, "checkpoints.Advance")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", in.SessionID),
		attribute.String("job_id", in.JobID),
		attribute.String("status", string(in.Status)),
	)

	if err := validate(in); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		res, err := s.advanceOnce(ctx, in)
		if errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrSessionActive) {
			slog.Warn("advance checkpoint: concurrent write, retrying",
				"session_id", in.SessionID, "job_id", in.JobID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if res.Applied {
			s.afterApply(ctx, res)
		}
		return res, nil
	}
	return nil, models.ErrConflict
}

func validate(in AdvanceInput) error {
	if in.Status == "" {
		return models.Invalid("status", "is required")
	}
	if in.SessionID != "" {
		return nil
	}
	if in.JobID == "" {
		return models.Invalid("jobId", "sessionId or jobId is required")
	}
	if !in.JobType.Valid() {
		return models.Invalid("jobType", "must be move or delivery")
	}
	return nil
}

func (s *Service) advanceOnce(ctx context.Context, in AdvanceInput) (*AdvanceResult, error) {
	sess, job, err := s.resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	if in.CrewTeamID != nil && (job.CrewTeamID == nil || *job.CrewTeamID != *in.CrewTeamID) {
		return nil, models.ErrForbidden
	}
	if job.Status == models.JobStatusCancelled || !in.Status.ValidFor(job.Type) {
		return nil, models.ErrInvalidTransition
	}

	if sess == nil {
		return s.start(ctx, job, in)
	}
	if !sess.IsActive {
		return closedRetry(sess, job, in.Status)
	}

	cur, ok := sess.Current()
	if !ok {
		return nil, errors.Errorf("session %s has no checkpoints", sess.ID)
	}
	if in.Status == cur.Status {
		// heartbeat: nothing is written, timestamp not advanced
		return &AdvanceResult{Session: sess, Checkpoint: cur}, nil
	}
	next, ok := models.Next(job.Type, cur.Status)
	if !ok || next != in.Status {
		return nil, models.ErrInvalidTransition
	}

	rec := s.record(in, cur.Timestamp)
	terminal := in.Status == models.TerminalCheckpoint(job.Type)
	err = s.repo.AppendCheckpoint(ctx, pgtracking.CheckpointAppend{
		SessionID: sess.ID,
		JobID:     job.ID,
		Seq:       len(sess.Checkpoints),
		Record:    rec,
		Close:     terminal,
		JobStatus: models.CompletedStatus(job.Type),
	})
	if errors.Is(err, models.ErrSessionClosed) {
		// closed between our read and write; reload and decide again
		return nil, models.ErrConflict
	}
	if err != nil {
		return nil, err
	}

	sess.Checkpoints = append(sess.Checkpoints, rec)
	if terminal {
		sess.IsActive = false
		at := rec.Timestamp
		sess.CompletedAt = &at
	}
	return &AdvanceResult{Session: sess, Checkpoint: rec, Applied: true}, nil
}

func (s *Service) resolve(ctx context.Context, in AdvanceInput) (*models.TrackingSession, *models.Job, error) {
	if in.SessionID != "" {
		sess, err := s.repo.GetSession(ctx, in.SessionID)
		if err != nil {
			return nil, nil, err
		}
		job, err := s.repo.GetJob(ctx, sess.JobID)
		if err != nil {
			return nil, nil, err
		}
		return sess, job, nil
	}

	job, err := s.repo.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, nil, err
	}
	if job.Type != in.JobType {
		return nil, nil, models.Invalid("jobType", "does not match the job")
	}
	sess, err := s.repo.GetActiveSession(ctx, job.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, job, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return sess, job, nil
}

func (s *Service) start(ctx context.Context, job *models.Job, in AdvanceInput) (*AdvanceResult, error) {
	latest, err := s.repo.GetLatestSession(ctx, job.ID)
	switch {
	case err == nil && latest.IsActive:
		// started concurrently
		return nil, models.ErrConflict
	case err == nil:
		return closedRetry(latest, job, in.Status)
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}
	if job.Status.Finished() {
		return nil, models.ErrSessionClosed
	}
	if in.Status != models.InitialCheckpoint(job.Type) {
		return nil, models.ErrInvalidTransition
	}

	rec := s.record(in, time.Time{})
	sess := &models.TrackingSession{
		ID:          uuid.NewString(),
		JobID:       job.ID,
		JobType:     job.Type,
		TeamID:      job.CrewTeamID,
		IsActive:    true,
		StartedAt:   rec.Timestamp,
		Checkpoints: []models.CheckpointRecord{rec},
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return &AdvanceResult{Session: sess, Checkpoint: rec, Applied: true, Started: true}, nil
}

// closedRetry accepts the terminal checkpoint against a closed session as a
// no-op when the job is already complete: either the crew retried it or the
// sign-off closed the session first.
func closedRetry(sess *models.TrackingSession, job *models.Job, status models.Checkpoint) (*AdvanceResult, error) {
	if status != models.TerminalCheckpoint(sess.JobType) {
		return nil, models.ErrSessionClosed
	}
	cur, ok := sess.Current()
	if ok && cur.Status == status {
		return &AdvanceResult{Session: sess, Checkpoint: cur}, nil
	}
	if ok && job.Status == models.CompletedStatus(job.Type) {
		return &AdvanceResult{Session: sess, Checkpoint: cur}, nil
	}
	return nil, models.ErrSessionClosed
}

// record builds the checkpoint, keeping timestamps monotonic within the session.
func (s *Service) record(in AdvanceInput, floor time.Time) models.CheckpointRecord {
	ts := in.Timestamp.UTC()
	if in.Timestamp.IsZero() {
		ts = s.now()
	}
	if ts.Before(floor) {
		ts = floor
	}
	return models.CheckpointRecord{
		Status:    in.Status,
		Timestamp: ts,
		Lat:       in.Lat,
		Lng:       in.Lng,
		Note:      in.Note,
	}
}

func (s *Service) afterApply(ctx context.Context, res *AdvanceResult) {
	sess := res.Session
	if s.publisher != nil {
		ev := messages.CheckpointEvent(sess.JobID, sess.JobType, sess.ID, res.Checkpoint)
		if err := s.publisher.Publish(ctx, ev); err != nil {
			slog.Warn("advance checkpoint: live publish", "session_id", sess.ID, "error", err.Error())
		}
	}
	if s.notifier != nil {
		s.notifier.CheckpointReached(ctx, models.CheckpointTransition{
			JobID:     sess.JobID,
			JobType:   sess.JobType,
			SessionID: sess.ID,
			Status:    res.Checkpoint.Status,
			Timestamp: res.Checkpoint.Timestamp,
		})
	}
}

package jobs

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/BearBump/CrewTrack/internal/models"
)

const defaultActivityLimit = 50

type Repository interface {
	CreateJob(ctx context.Context, in models.JobCreateInput) (*models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	FinalizeJob(ctx context.Context, jobID string, status models.JobStatus, at time.Time) (string, error)
	ListActivity(ctx context.Context, jobID string, limit int) ([]models.ActivityEntry, error)
}

type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, jobID string) error
}

// Service is the small dispatch surface: enough to create, read and cancel
// the jobs crews execute.
type Service struct {
	repo      Repository
	snapshots SnapshotInvalidator
	now       func() time.Time
}

func New(repo Repository, snapshots SnapshotInvalidator) *Service {
	return &Service{repo: repo, snapshots: snapshots, now: func() time.Time { return time.Now().UTC() }}
}

func validPoint(p *models.GeoPoint) bool {
	return p == nil || (p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180)
}

func validate(in models.JobCreateInput) error {
	if !in.Type.Valid() {
		return models.Invalid("type", "must be move or delivery")
	}
	if strings.TrimSpace(in.ClientName) == "" {
		return models.Invalid("clientName", "is required")
	}
	if _, err := mail.ParseAddress(in.ClientEmail); err != nil {
		return models.Invalid("clientEmail", "is not a valid address")
	}
	if in.PartnerEmail != nil && *in.PartnerEmail != "" {
		if _, err := mail.ParseAddress(*in.PartnerEmail); err != nil {
			return models.Invalid("partnerEmail", "is not a valid address")
		}
	}
	if strings.TrimSpace(in.Destination.Line) == "" {
		return models.Invalid("destination", "is required")
	}
	if in.Type == models.JobTypeMove && strings.TrimSpace(in.Pickup.Line) == "" {
		return models.Invalid("pickup", "is required for moves")
	}
	if !validPoint(in.Pickup.Location) || !validPoint(in.Destination.Location) {
		return models.Invalid("location", "coordinates out of range")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in models.JobCreateInput) (*models.Job, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	in.ClientName = strings.TrimSpace(in.ClientName)
	return s.repo.CreateJob(ctx, in)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Job, error) {
	if id == "" {
		return nil, models.Invalid("jobId", "is required")
	}
	return s.repo.GetJob(ctx, id)
}

// Cancel stops a job that has not finished. Its active session, if any, is
// closed; a cancelled job rejects further checkpoints.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case models.JobStatusCancelled:
		return job, nil
	case models.JobStatusCompleted, models.JobStatusDelivered:
		return nil, models.ErrInvalidTransition
	}

	if _, err := s.repo.FinalizeJob(ctx, id, models.JobStatusCancelled, s.now()); err != nil {
		return nil, err
	}
	if s.snapshots != nil {
		if err := s.snapshots.Invalidate(ctx, id); err != nil {
			slog.Warn("cancel job: invalidate snapshot", "job_id", id, "error", err.Error())
		}
	}
	job.Status = models.JobStatusCancelled
	return job, nil
}

func (s *Service) Activity(ctx context.Context, jobID string, limit int) ([]models.ActivityEntry, error) {
	if jobID == "" {
		return nil, models.Invalid("jobId", "is required")
	}
	if limit <= 0 || limit > 500 {
		limit = defaultActivityLimit
	}
	return s.repo.ListActivity(ctx, jobID, limit)
}

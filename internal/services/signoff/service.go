package signoff

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/BearBump/CrewTrack/internal/models"
	"github.com/BearBump/CrewTrack/internal/notify"
	"github.com/BearBump/CrewTrack/internal/storage/artifacts"
)

// DamageReportWindow is how long after signing the client may still report
// concealed damage.
const DamageReportWindow = 24 * time.Hour

var tracer = otel.Tracer("github.com/BearBump/CrewTrack/internal/services/signoff")

type Repository interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetSignOff(ctx context.Context, jobID string, jobType models.JobType) (*models.ClientSignOff, error)
	InsertSignOff(ctx context.Context, so *models.ClientSignOff) error
	SetDiscrepancyFlags(ctx context.Context, id string, flags []string) error
	CreateIncident(ctx context.Context, in *models.Incident) error
	ListIncidents(ctx context.Context, jobID string, jobType models.JobType) ([]models.Incident, error)
	FinalizeJob(ctx context.Context, jobID string, status models.JobStatus, at time.Time) (string, error)
}

type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// SnapshotInvalidator drops cached live state after the job is finalized.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, jobID string) error
}

type Escalator interface {
	Escalated(ctx context.Context, p notify.EscalationPayload)
}

type Service struct {
	repo      Repository
	artifacts ArtifactStore
	snapshots SnapshotInvalidator
	escalator Escalator
	now       func() time.Time
}

func New(repo Repository, store ArtifactStore, snapshots SnapshotInvalidator, escalator Escalator) *Service {
	return &Service{
		repo:      repo,
		artifacts: store,
		snapshots: snapshots,
		escalator: escalator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func validate(in models.SignOffInput) error {
	if in.JobID == "" {
		return models.Invalid("jobId", "is required")
	}
	if !in.JobType.Valid() {
		return models.Invalid("jobType", "must be move or delivery")
	}
	if strings.TrimSpace(in.SignerName) == "" {
		return models.Invalid("signerName", "is required")
	}
	if strings.TrimSpace(in.Signature) == "" {
		return models.Invalid("signature", "is required")
	}
	a := in.Attestations
	if a.SatisfactionRating < 1 || a.SatisfactionRating > 5 {
		return models.Invalid("satisfactionRating", "must be between 1 and 5")
	}
	if a.NPSScore != nil && (*a.NPSScore < 0 || *a.NPSScore > 10) {
		return models.Invalid("npsScore", "must be between 0 and 10")
	}
	return nil
}

// Submit records the client's one-time sign-off. Once the record is written
// the remaining steps (discrepancy backfill, job finalization, escalation
// handoff) are best effort and never fail the call.
func (s *Service) Submit(ctx context.Context, in models.SignOffInput) (*models.ClientSignOff, error) {
	ctx, span := tracer.Start(ctx, "signoff.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("job_id", in.JobID), attribute.String("job_type", string(in.JobType)))

	if err := validate(in); err != nil {
		return nil, err
	}
	job, err := s.repo.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	if job.Type != in.JobType {
		return nil, models.Invalid("jobType", "does not match the job")
	}

	_, err = s.repo.GetSignOff(ctx, in.JobID, in.JobType)
	if err == nil {
		return nil, models.ErrAlreadySigned
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	img, contentType, err := artifacts.DecodeSignature(in.Signature)
	if err != nil {
		return nil, models.Invalid("signature", err.Error())
	}

	now := s.now()
	id := uuid.NewString()
	key := fmt.Sprintf("signoffs/%s/%s%s", in.JobID, id, artifacts.ExtensionFor(contentType))
	if err := s.artifacts.Put(ctx, key, img, contentType); err != nil {
		span.RecordError(err)
		return nil, err
	}

	reasons := EscalationReasons(in.Attestations)
	so := &models.ClientSignOff{
		ID:                   id,
		JobID:                in.JobID,
		JobType:              in.JobType,
		SignerName:           strings.TrimSpace(in.SignerName),
		SignatureKey:         key,
		SignedLocation:       in.SignedLocation,
		Attestations:         in.Attestations,
		EscalationTriggered:  len(reasons) > 0,
		EscalationReasons:    reasons,
		EscalationReason:     strings.Join(reasons, "; "),
		DiscrepancyFlags:     []string{},
		DamageReportDeadline: now.Add(DamageReportWindow),
		SignedAt:             now,
	}
	if so.EscalationReasons == nil {
		so.EscalationReasons = []string{}
	}
	if err := s.repo.InsertSignOff(ctx, so); err != nil {
		span.RecordError(err)
		s.discardArtifact(ctx, key)
		return nil, err
	}

	s.backfillDiscrepancies(ctx, so)
	s.finalize(ctx, job, now)
	if so.EscalationTriggered && s.escalator != nil {
		s.escalator.Escalated(ctx, notify.EscalationPayload{
			SignOffID:        so.ID,
			JobID:            so.JobID,
			JobType:          so.JobType,
			Reason:           so.EscalationReason,
			DiscrepancyFlags: so.DiscrepancyFlags,
		})
	}
	return so, nil
}

// discardArtifact removes a signature whose record was never written.
func (s *Service) discardArtifact(ctx context.Context, key string) {
	if err := s.artifacts.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("signoff: remove orphaned signature", "key", key, "error", err.Error())
	}
}

func (s *Service) backfillDiscrepancies(ctx context.Context, so *models.ClientSignOff) {
	incidents, err := s.repo.ListIncidents(ctx, so.JobID, so.JobType)
	if err != nil {
		slog.Warn("signoff: list incidents", "job_id", so.JobID, "error", err.Error())
		return
	}
	flags := DiscrepancyFlags(so.Attestations, incidents)
	if len(flags) == 0 {
		return
	}
	if err := s.repo.SetDiscrepancyFlags(ctx, so.ID, flags); err != nil {
		slog.Warn("signoff: set discrepancy flags", "signoff_id", so.ID, "error", err.Error())
		return
	}
	so.DiscrepancyFlags = flags
}

// finalize is the sign-off path to job completion; it closes an active
// session without a checkpoint and is a no-op for an already closed one.
func (s *Service) finalize(ctx context.Context, job *models.Job, at time.Time) {
	closed, err := s.repo.FinalizeJob(ctx, job.ID, models.CompletedStatus(job.Type), at)
	if err != nil {
		slog.Error("signoff: finalize job", "job_id", job.ID, "error", err.Error())
		return
	}
	if closed != "" {
		slog.Info("signoff: closed active session", "job_id", job.ID, "session_id", closed)
	}
	if s.snapshots != nil {
		if err := s.snapshots.Invalidate(ctx, job.ID); err != nil {
			slog.Warn("signoff: invalidate snapshot", "job_id", job.ID, "error", err.Error())
		}
	}
}

func (s *Service) Get(ctx context.Context, jobID string, jobType models.JobType) (*models.ClientSignOff, error) {
	if jobID == "" {
		return nil, models.Invalid("jobId", "is required")
	}
	if !jobType.Valid() {
		return nil, models.Invalid("jobType", "must be move or delivery")
	}
	return s.repo.GetSignOff(ctx, jobID, jobType)
}

type IncidentInput struct {
	JobID       string
	JobType     models.JobType
	IssueType   models.IssueType
	Description string
	ReportedBy  *string
	OccurredAt  time.Time
}

func validIssue(t models.IssueType) bool {
	switch t {
	case models.IssueTypeDamage, models.IssueTypeMissingItem, models.IssueTypeDelay,
		models.IssueTypeAccess, models.IssueTypeOther:
		return true
	}
	return false
}

// ReportIncident records a crew-side incident. Incidents feed the discrepancy
// check of a later sign-off.
func (s *Service) ReportIncident(ctx context.Context, in IncidentInput) (*models.Incident, error) {
	if in.JobID == "" {
		return nil, models.Invalid("jobId", "is required")
	}
	if !in.JobType.Valid() {
		return nil, models.Invalid("jobType", "must be move or delivery")
	}
	if !validIssue(in.IssueType) {
		return nil, models.Invalid("issueType", "is not a known issue type")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, models.Invalid("description", "is required")
	}
	job, err := s.repo.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	if job.Type != in.JobType {
		return nil, models.Invalid("jobType", "does not match the job")
	}

	occurred := in.OccurredAt.UTC()
	if in.OccurredAt.IsZero() {
		occurred = s.now()
	}
	inc := &models.Incident{
		JobID:       in.JobID,
		JobType:     in.JobType,
		IssueType:   in.IssueType,
		Description: strings.TrimSpace(in.Description),
		ReportedBy:  in.ReportedBy,
		OccurredAt:  occurred,
	}
	if err := s.repo.CreateIncident(ctx, inc); err != nil {
		return nil, err
	}
	return inc, nil
}

func (s *Service) ListIncidents(ctx context.Context, jobID string, jobType models.JobType) ([]models.Incident, error) {
	if jobID == "" {
		return nil, models.Invalid("jobId", "is required")
	}
	return s.repo.ListIncidents(ctx, jobID, jobType)
}

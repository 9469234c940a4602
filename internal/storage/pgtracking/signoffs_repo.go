package pgtracking

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/models"
)

// InsertSignOff returns models.ErrAlreadySigned when the job already has one.
func (s *Storage) InsertSignOff(ctx context.Context, so *models.ClientSignOff) error {
	att, err := json.Marshal(so.Attestations)
	if err != nil {
		return errors.Wrap(err, "marshal attestations")
	}
	lat, lng := splitPoint(so.SignedLocation)

	_, err = s.db.Exec(ctx, `
INSERT INTO client_signoffs (
  id, job_id, job_type, signer_name, signature_key,
  signed_lat, signed_lng, attestations,
  escalation_triggered, escalation_reasons, escalation_reason,
  discrepancy_flags, damage_report_deadline, signed_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`, so.ID, so.JobID, so.JobType, so.SignerName, so.SignatureKey,
		lat, lng, att,
		so.EscalationTriggered, nonNil(so.EscalationReasons), so.EscalationReason,
		nonNil(so.DiscrepancyFlags), so.DamageReportDeadline.UTC(), so.SignedAt.UTC())
	if uniqueViolation(err, constraintSignOffJob) {
		return models.ErrAlreadySigned
	}
	return errors.Wrap(err, "insert signoff")
}

func (s *Storage) GetSignOff(ctx context.Context, jobID string, jobType models.JobType) (*models.ClientSignOff, error) {
	var (
		so       models.ClientSignOff
		lat, lng *float64
		att      []byte
	)
	err := s.db.QueryRow(ctx, `
SELECT
  id, job_id, job_type, signer_name, signature_key,
  signed_lat, signed_lng, attestations,
  escalation_triggered, escalation_reasons, escalation_reason,
  discrepancy_flags, damage_report_deadline, signed_at
FROM client_signoffs
WHERE job_id = $1 AND job_type = $2
`, jobID, jobType).Scan(
		&so.ID, &so.JobID, &so.JobType, &so.SignerName, &so.SignatureKey,
		&lat, &lng, &att,
		&so.EscalationTriggered, &so.EscalationReasons, &so.EscalationReason,
		&so.DiscrepancyFlags, &so.DamageReportDeadline, &so.SignedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select signoff")
	}
	if err := json.Unmarshal(att, &so.Attestations); err != nil {
		return nil, errors.Wrap(err, "unmarshal attestations")
	}
	so.SignedLocation = joinPoint(lat, lng)
	return &so, nil
}

// SetDiscrepancyFlags is the one-time backfill run right after insert.
func (s *Storage) SetDiscrepancyFlags(ctx context.Context, id string, flags []string) error {
	_, err := s.db.Exec(ctx, `UPDATE client_signoffs SET discrepancy_flags = $2 WHERE id = $1`, id, nonNil(flags))
	return errors.Wrap(err, "update discrepancy flags")
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

package pgtracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/models"
)

func (s *Storage) CreateIncident(ctx context.Context, in *models.Incident) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO incidents (id, job_id, job_type, issue_type, description, reported_by, occurred_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, in.ID, in.JobID, in.JobType, in.IssueType, in.Description, in.ReportedBy, in.OccurredAt.UTC(), in.CreatedAt.UTC())
	return errors.Wrap(err, "insert incident")
}

func (s *Storage) ListIncidents(ctx context.Context, jobID string, jobType models.JobType) ([]models.Incident, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, job_id, job_type, issue_type, description, reported_by, occurred_at, created_at
FROM incidents
WHERE job_id = $1 AND job_type = $2
ORDER BY occurred_at
`, jobID, jobType)
	if err != nil {
		return nil, errors.Wrap(err, "select incidents")
	}
	defer rows.Close()

	out := []models.Incident{}
	for rows.Next() {
		var in models.Incident
		if err := rows.Scan(
			&in.ID, &in.JobID, &in.JobType, &in.IssueType,
			&in.Description, &in.ReportedBy, &in.OccurredAt, &in.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan incident")
		}
		out = append(out, in)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

package pgtracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/models"
)

const jobColumns = `
  id, job_type, status, stage, crew_team_id,
  client_name, client_email, client_phone,
  partner_org_id, partner_email,
  pickup_line, pickup_lat, pickup_lng,
  destination_line, destination_lat, destination_lng,
  scheduled_at, created_at, updated_at`

func (s *Storage) CreateJob(ctx context.Context, in models.JobCreateInput) (*models.Job, error) {
	now := time.Now().UTC()
	id := uuid.NewString()

	pLat, pLng := splitPoint(in.Pickup.Location)
	dLat, dLng := splitPoint(in.Destination.Location)

	_, err := s.db.Exec(ctx, `
INSERT INTO jobs (
  id, job_type, status, crew_team_id,
  client_name, client_email, client_phone,
  partner_org_id, partner_email,
  pickup_line, pickup_lat, pickup_lng,
  destination_line, destination_lat, destination_lng,
  scheduled_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17)
`, id, in.Type, models.JobStatusScheduled, in.CrewTeamID,
		in.ClientName, in.ClientEmail, in.ClientPhone,
		in.PartnerOrgID, in.PartnerEmail,
		in.Pickup.Line, pLat, pLng,
		in.Destination.Line, dLat, dLng,
		in.ScheduledAt, now)
	if err != nil {
		return nil, errors.Wrap(err, "insert job")
	}
	return s.GetJob(ctx, id)
}

func (s *Storage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRow(ctx, `SELECT`+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select job")
	}
	return j, nil
}

// GetJobsByIDs returns the jobs that exist, in no particular order.
func (s *Storage) GetJobsByIDs(ctx context.Context, ids []string) ([]*models.Job, error) {
	if len(ids) == 0 {
		return []*models.Job{}, nil
	}
	rows, err := s.db.Query(ctx, `SELECT`+jobColumns+` FROM jobs WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select jobs")
	}
	defer rows.Close()

	out := make([]*models.Job, 0, len(ids))
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		out = append(out, j)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		j          models.Job
		pLat, pLng *float64
		dLat, dLng *float64
	)
	if err := row.Scan(
		&j.ID, &j.Type, &j.Status, &j.Stage, &j.CrewTeamID,
		&j.ClientName, &j.ClientEmail, &j.ClientPhone,
		&j.PartnerOrgID, &j.PartnerEmail,
		&j.Pickup.Line, &pLat, &pLng,
		&j.Destination.Line, &dLat, &dLng,
		&j.ScheduledAt, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.Pickup.Location = joinPoint(pLat, pLng)
	j.Destination.Location = joinPoint(dLat, dLng)
	return &j, nil
}

func splitPoint(p *models.GeoPoint) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}

func joinPoint(lat, lng *float64) *models.GeoPoint {
	if lat == nil || lng == nil {
		return nil
	}
	return &models.GeoPoint{Lat: *lat, Lng: *lng}
}

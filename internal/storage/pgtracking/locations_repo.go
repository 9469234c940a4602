package pgtracking

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/models"
)

func (s *Storage) InsertLocation(ctx context.Context, u models.LocationUpdate) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO location_updates (session_id, lat, lng, recorded_at)
VALUES ($1,$2,$3,$4)
`, u.SessionID, u.Lat, u.Lng, u.RecordedAt.UTC())
	return errors.Wrap(err, "insert location")
}

// ListLocations returns the session's samples ordered by timestamp.
func (s *Storage) ListLocations(ctx context.Context, sessionID string) ([]models.LocationUpdate, error) {
	rows, err := s.db.Query(ctx, `
SELECT session_id, lat, lng, recorded_at
FROM location_updates
WHERE session_id = $1
ORDER BY recorded_at, id
`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "select locations")
	}
	defer rows.Close()

	out := []models.LocationUpdate{}
	for rows.Next() {
		var u models.LocationUpdate
		if err := rows.Scan(&u.SessionID, &u.Lat, &u.Lng, &u.RecordedAt); err != nil {
			return nil, errors.Wrap(err, "scan location")
		}
		out = append(out, u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// LatestLocation returns the newest sample by timestamp, not by arrival.
func (s *Storage) LatestLocation(ctx context.Context, sessionID string) (*models.LocationUpdate, error) {
	var u models.LocationUpdate
	err := s.db.QueryRow(ctx, `
SELECT session_id, lat, lng, recorded_at
FROM location_updates
WHERE session_id = $1
ORDER BY recorded_at DESC, id DESC
LIMIT 1
`, sessionID).Scan(&u.SessionID, &u.Lat, &u.Lng, &u.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select latest location")
	}
	return &u, nil
}

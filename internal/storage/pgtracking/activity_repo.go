package pgtracking

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/models"
)

func (s *Storage) InsertActivity(ctx context.Context, e models.ActivityEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO activity_feed (job_id, job_type, kind, message, created_at)
VALUES ($1,$2,$3,$4,$5)
`, e.JobID, e.JobType, e.Kind, e.Message, e.CreatedAt.UTC())
	return errors.Wrap(err, "insert activity")
}

func (s *Storage) ListActivity(ctx context.Context, jobID string, limit int) ([]models.ActivityEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
SELECT id, job_id, job_type, kind, message, created_at
FROM activity_feed
WHERE job_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, jobID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select activity")
	}
	defer rows.Close()

	out := []models.ActivityEntry{}
	for rows.Next() {
		var e models.ActivityEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.JobType, &e.Kind, &e.Message, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan activity")
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

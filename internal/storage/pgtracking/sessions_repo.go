package pgtracking

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/models"
)

// CheckpointAppend is one checkpoint write. Close ends the session, in which
// case JobStatus is written to the job as well.
type CheckpointAppend struct {
	SessionID string
	JobID     string
	Seq       int
	Record    models.CheckpointRecord
	Close     bool
	JobStatus models.JobStatus
}

const sessionColumns = `id, job_id, job_type, team_id, is_active, started_at, completed_at`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateSession inserts sess together with its first checkpoint and moves the
// job to in_progress. Returns models.ErrSessionActive when the job already
// has an active session.
func (s *Storage) CreateSession(ctx context.Context, sess *models.TrackingSession) error {
	first, ok := sess.Current()
	if !ok {
		return errors.New("session without initial checkpoint")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO tracking_sessions (id, job_id, job_type, team_id, is_active, started_at)
VALUES ($1,$2,$3,$4,TRUE,$5)
`, sess.ID, sess.JobID, sess.JobType, sess.TeamID, sess.StartedAt.UTC())
	if uniqueViolation(err, constraintActiveSession) {
		return models.ErrSessionActive
	}
	if err != nil {
		return errors.Wrap(err, "insert session")
	}

	if err := insertCheckpoint(ctx, tx, sess.ID, 0, first); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
UPDATE jobs SET status = $2, stage = $3, updated_at = now() WHERE id = $1
`, sess.JobID, models.JobStatusInProgress, string(first.Status))
	if err != nil {
		return errors.Wrap(err, "update job (start)")
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// AppendCheckpoint writes one checkpoint. The session row is locked for the
// duration, a closed session yields models.ErrSessionClosed and a seq that is
// already taken yields models.ErrConflict.
func (s *Storage) AppendCheckpoint(ctx context.Context, a CheckpointAppend) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var active bool
	err = tx.QueryRow(ctx, `SELECT is_active FROM tracking_sessions WHERE id = $1 FOR UPDATE`, a.SessionID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "lock session")
	}
	if !active {
		return models.ErrSessionClosed
	}

	var next int
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM session_checkpoints WHERE session_id = $1`, a.SessionID).Scan(&next)
	if err != nil {
		return errors.Wrap(err, "next seq")
	}
	if next != a.Seq {
		return models.ErrConflict
	}

	if err := insertCheckpoint(ctx, tx, a.SessionID, a.Seq, a.Record); err != nil {
		return err
	}

	if a.Close {
		_, err = tx.Exec(ctx, `
UPDATE tracking_sessions SET is_active = FALSE, completed_at = $2 WHERE id = $1
`, a.SessionID, a.Record.Timestamp.UTC())
		if err != nil {
			return errors.Wrap(err, "close session")
		}
		_, err = tx.Exec(ctx, `
UPDATE jobs SET status = $2, stage = $3, updated_at = now() WHERE id = $1
`, a.JobID, a.JobStatus, string(a.Record.Status))
	} else {
		_, err = tx.Exec(ctx, `UPDATE jobs SET stage = $2, updated_at = now() WHERE id = $1`, a.JobID, string(a.Record.Status))
	}
	if err != nil {
		return errors.Wrap(err, "update job (checkpoint)")
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// FinalizeJob closes the job's active session, if any, without adding a
// checkpoint and writes status to the job. Closing an already closed session
// is a no-op. Returns the id of the session it closed, empty when none.
func (s *Storage) FinalizeJob(ctx context.Context, jobID string, status models.JobStatus, at time.Time) (string, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var closed string
	err = tx.QueryRow(ctx, `
UPDATE tracking_sessions SET is_active = FALSE, completed_at = $2
WHERE job_id = $1 AND is_active
RETURNING id
`, jobID, at.UTC()).Scan(&closed)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", errors.Wrap(err, "close session (finalize)")
	}

	_, err = tx.Exec(ctx, `
UPDATE jobs SET status = $2, updated_at = now() WHERE id = $1 AND status <> $3
`, jobID, status, models.JobStatusCancelled)
	if err != nil {
		return "", errors.Wrap(err, "update job (finalize)")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", errors.Wrap(err, "commit tx")
	}
	return closed, nil
}

func (s *Storage) GetSession(ctx context.Context, id string) (*models.TrackingSession, error) {
	return s.oneSession(ctx, `SELECT `+sessionColumns+` FROM tracking_sessions WHERE id = $1`, id)
}

func (s *Storage) GetActiveSession(ctx context.Context, jobID string) (*models.TrackingSession, error) {
	return s.oneSession(ctx, `SELECT `+sessionColumns+` FROM tracking_sessions WHERE job_id = $1 AND is_active`, jobID)
}

// GetLatestSession returns the most recently started session of the job,
// active or not.
func (s *Storage) GetLatestSession(ctx context.Context, jobID string) (*models.TrackingSession, error) {
	return s.oneSession(ctx, `
SELECT `+sessionColumns+` FROM tracking_sessions
WHERE job_id = $1
ORDER BY is_active DESC, started_at DESC
LIMIT 1`, jobID)
}

// ListActiveSessions returns every active session with its checkpoint log.
func (s *Storage) ListActiveSessions(ctx context.Context) ([]*models.TrackingSession, error) {
	rows, err := s.db.Query(ctx, `SELECT `+sessionColumns+` FROM tracking_sessions WHERE is_active ORDER BY started_at`)
	if err != nil {
		return nil, errors.Wrap(err, "select active sessions")
	}
	defer rows.Close()

	var out []*models.TrackingSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		out = append(out, sess)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	for _, sess := range out {
		cps, err := listCheckpoints(ctx, s.db, sess.ID)
		if err != nil {
			return nil, err
		}
		sess.Checkpoints = cps
	}
	return out, nil
}

func (s *Storage) oneSession(ctx context.Context, q string, arg string) (*models.TrackingSession, error) {
	sess, err := scanSession(s.db.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select session")
	}
	cps, err := listCheckpoints(ctx, s.db, sess.ID)
	if err != nil {
		return nil, err
	}
	sess.Checkpoints = cps
	return sess, nil
}

func scanSession(row pgx.Row) (*models.TrackingSession, error) {
	var sess models.TrackingSession
	if err := row.Scan(
		&sess.ID, &sess.JobID, &sess.JobType, &sess.TeamID,
		&sess.IsActive, &sess.StartedAt, &sess.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &sess, nil
}

func listCheckpoints(ctx context.Context, q querier, sessionID string) ([]models.CheckpointRecord, error) {
	rows, err := q.Query(ctx, `
SELECT status, ts, lat, lng, note
FROM session_checkpoints
WHERE session_id = $1
ORDER BY seq
`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "select checkpoints")
	}
	defer rows.Close()

	out := []models.CheckpointRecord{}
	for rows.Next() {
		var c models.CheckpointRecord
		if err := rows.Scan(&c.Status, &c.Timestamp, &c.Lat, &c.Lng, &c.Note); err != nil {
			return nil, errors.Wrap(err, "scan checkpoint")
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func insertCheckpoint(ctx context.Context, tx pgx.Tx, sessionID string, seq int, c models.CheckpointRecord) error {
	_, err := tx.Exec(ctx, `
INSERT INTO session_checkpoints (session_id, seq, status, ts, lat, lng, note)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, sessionID, seq, string(c.Status), c.Timestamp.UTC(), c.Lat, c.Lng, c.Note)
	if uniqueViolation(err, constraintCheckpointSeq) {
		return models.ErrConflict
	}
	return errors.Wrap(err, "insert checkpoint")
}

package pgtracking

import (
	"context"

	"github.com/pkg/errors"
)

const (
	constraintActiveSession = "uq_tracking_sessions_active_job"
	constraintCheckpointSeq = "session_checkpoints_pkey"
	constraintSignOffJob    = "uq_client_signoffs_job"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS jobs (
  id TEXT PRIMARY KEY,
  job_type TEXT NOT NULL,
  status TEXT NOT NULL,
  stage TEXT NULL,
  crew_team_id TEXT NULL,
  client_name TEXT NOT NULL,
  client_email TEXT NOT NULL,
  client_phone TEXT NOT NULL DEFAULT '',
  partner_org_id TEXT NULL,
  partner_email TEXT NULL,
  pickup_line TEXT NOT NULL DEFAULT '',
  pickup_lat DOUBLE PRECISION NULL,
  pickup_lng DOUBLE PRECISION NULL,
  destination_line TEXT NOT NULL DEFAULT '',
  destination_lat DOUBLE PRECISION NULL,
  destination_lng DOUBLE PRECISION NULL,
  scheduled_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS tracking_sessions (
  id TEXT PRIMARY KEY,
  job_id TEXT NOT NULL REFERENCES jobs(id),
  job_type TEXT NOT NULL,
  team_id TEXT NULL,
  is_active BOOLEAN NOT NULL,
  started_at TIMESTAMPTZ NOT NULL,
  completed_at TIMESTAMPTZ NULL
)`,
		// At most one active session per job.
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + constraintActiveSession + ` ON tracking_sessions(job_id) WHERE is_active`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_sessions_job_started ON tracking_sessions(job_id, started_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS session_checkpoints (
  session_id TEXT NOT NULL REFERENCES tracking_sessions(id) ON DELETE CASCADE,
  seq INT NOT NULL,
  status TEXT NOT NULL,
  ts TIMESTAMPTZ NOT NULL,
  lat DOUBLE PRECISION NULL,
  lng DOUBLE PRECISION NULL,
  note TEXT NULL,
  CONSTRAINT ` + constraintCheckpointSeq + ` PRIMARY KEY (session_id, seq)
)`,
		`
CREATE TABLE IF NOT EXISTS location_updates (
  id BIGSERIAL PRIMARY KEY,
  session_id TEXT NOT NULL REFERENCES tracking_sessions(id) ON DELETE CASCADE,
  lat DOUBLE PRECISION NOT NULL,
  lng DOUBLE PRECISION NOT NULL,
  recorded_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_location_updates_session_time ON location_updates(session_id, recorded_at)`,
		`
CREATE TABLE IF NOT EXISTS incidents (
  id TEXT PRIMARY KEY,
  job_id TEXT NOT NULL REFERENCES jobs(id),
  job_type TEXT NOT NULL,
  issue_type TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  reported_by TEXT NULL,
  occurred_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_job ON incidents(job_id, job_type)`,
		`
CREATE TABLE IF NOT EXISTS client_signoffs (
  id TEXT PRIMARY KEY,
  job_id TEXT NOT NULL REFERENCES jobs(id),
  job_type TEXT NOT NULL,
  signer_name TEXT NOT NULL,
  signature_key TEXT NOT NULL,
  signed_lat DOUBLE PRECISION NULL,
  signed_lng DOUBLE PRECISION NULL,
  attestations JSONB NOT NULL,
  escalation_triggered BOOLEAN NOT NULL,
  escalation_reasons TEXT[] NOT NULL DEFAULT '{}',
  escalation_reason TEXT NOT NULL DEFAULT '',
  discrepancy_flags TEXT[] NOT NULL DEFAULT '{}',
  damage_report_deadline TIMESTAMPTZ NOT NULL,
  signed_at TIMESTAMPTZ NOT NULL,
  CONSTRAINT ` + constraintSignOffJob + ` UNIQUE (job_id, job_type)
)`,
		`
CREATE TABLE IF NOT EXISTS activity_feed (
  id BIGSERIAL PRIMARY KEY,
  job_id TEXT NOT NULL,
  job_type TEXT NOT NULL,
  kind TEXT NOT NULL,
  message TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_feed_job ON activity_feed(job_id, created_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}

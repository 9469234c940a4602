package models

import "time"

// CheckpointRecord is one entry of a session's checkpoint log.
type CheckpointRecord struct {
	Status    Checkpoint `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Lat       *float64   `json:"lat,omitempty"`
	Lng       *float64   `json:"lng,omitempty"`
	Note      *string    `json:"note,omitempty"`
}

// TrackingSession is the live-execution record of one run of a job.
type TrackingSession struct {
	ID          string             `json:"id"`
	JobID       string             `json:"jobId"`
	JobType     JobType            `json:"jobType"`
	TeamID      *string            `json:"teamId,omitempty"`
	IsActive    bool               `json:"isActive"`
	StartedAt   time.Time          `json:"startedAt"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
	Checkpoints []CheckpointRecord `json:"checkpoints"`
}

// Current returns the latest checkpoint of the session.
func (s *TrackingSession) Current() (CheckpointRecord, bool) {
	if len(s.Checkpoints) == 0 {
		return CheckpointRecord{}, false
	}
	return s.Checkpoints[len(s.Checkpoints)-1], true
}

// AllowedNext is the only new checkpoint the crew may send next, if any.
func (s *TrackingSession) AllowedNext() (Checkpoint, bool) {
	if !s.IsActive {
		return "", false
	}
	cur, ok := s.Current()
	if !ok {
		return InitialCheckpoint(s.JobType), true
	}
	return Next(s.JobType, cur.Status)
}

type LocationUpdate struct {
	SessionID  string    `json:"sessionId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"timestamp"`
}

type SessionSummary struct {
	SessionID       string     `json:"sessionId"`
	JobID           string     `json:"jobId"`
	JobType         JobType    `json:"jobType"`
	IsActive        bool       `json:"isActive"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	DurationMinutes float64    `json:"durationMinutes"`
	DistanceKm      float64    `json:"distanceKm"`
	LocationSamples int        `json:"locationSamples"`
	Checkpoints     int        `json:"checkpoints"`
}

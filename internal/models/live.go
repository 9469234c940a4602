package models

import "time"

type LocationPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// LiveSnapshot is what poll-mode observers receive for one job.
// ETAMinutes is advisory: it is never a confirmed arrival.
type LiveSnapshot struct {
	JobID            string            `json:"jobId"`
	JobType          JobType           `json:"jobType"`
	ActiveSession    bool              `json:"activeSession"`
	SessionID        string            `json:"sessionId,omitempty"`
	LatestLocation   *LocationPoint    `json:"latestLocation,omitempty"`
	LatestCheckpoint *CheckpointRecord `json:"latestCheckpoint,omitempty"`
	ETAMinutes       *int              `json:"etaMinutes,omitempty"`
	ETAEstimated     bool              `json:"etaEstimated"`
	Pickup           *GeoPoint         `json:"pickup,omitempty"`
	Destination      *GeoPoint         `json:"destination,omitempty"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

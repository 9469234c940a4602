package models

import "time"

// CheckpointTransition is handed to the notification dispatcher after a
// checkpoint has been recorded.
type CheckpointTransition struct {
	JobID     string     `json:"jobId"`
	JobType   JobType    `json:"jobType"`
	SessionID string     `json:"sessionId"`
	Status    Checkpoint `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

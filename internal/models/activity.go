package models

import "time"

type ActivityKind string

const (
	ActivityCheckpoint ActivityKind = "checkpoint"
	ActivityEscalation ActivityKind = "escalation"
)

// ActivityEntry is a line of the internal activity feed shown to admins.
type ActivityEntry struct {
	ID        int64        `json:"id"`
	JobID     string       `json:"jobId"`
	JobType   JobType      `json:"jobType"`
	Kind      ActivityKind `json:"kind"`
	Message   string       `json:"message"`
	CreatedAt time.Time    `json:"createdAt"`
}

package models

import "time"

type JobStatus string

const (
	JobStatusConfirmed  JobStatus = "confirmed"
	JobStatusScheduled  JobStatus = "scheduled"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusDelivered  JobStatus = "delivered"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Finished reports whether no more crew activity is expected on the job.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusDelivered || s == JobStatusCancelled
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Address struct {
	Line     string    `json:"line"`
	Location *GeoPoint `json:"location,omitempty"`
}

type Job struct {
	ID           string     `json:"id"`
	Type         JobType    `json:"type"`
	Status       JobStatus  `json:"status"`
	Stage        *string    `json:"stage,omitempty"`
	CrewTeamID   *string    `json:"crewTeamId,omitempty"`
	ClientName   string     `json:"clientName"`
	ClientEmail  string     `json:"clientEmail"`
	ClientPhone  string     `json:"clientPhone,omitempty"`
	PartnerOrgID *string    `json:"partnerOrgId,omitempty"`
	PartnerEmail *string    `json:"partnerEmail,omitempty"`
	Pickup       Address    `json:"pickup"`
	Destination  Address    `json:"destination"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type JobCreateInput struct {
	Type         JobType
	CrewTeamID   *string
	ClientName   string
	ClientEmail  string
	ClientPhone  string
	PartnerOrgID *string
	PartnerEmail *string
	Pickup       Address
	Destination  Address
	ScheduledAt  *time.Time
}

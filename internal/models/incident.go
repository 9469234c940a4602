package models

import "time"

type IssueType string

const (
	IssueTypeDamage      IssueType = "damage"
	IssueTypeMissingItem IssueType = "missing_item"
	IssueTypeDelay       IssueType = "delay"
	IssueTypeAccess      IssueType = "access"
	IssueTypeOther       IssueType = "other"
)

// Incident is reported by the crew during the job, before any sign-off.
type Incident struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId"`
	JobType     JobType   `json:"jobType"`
	IssueType   IssueType `json:"issueType"`
	Description string    `json:"description"`
	ReportedBy  *string   `json:"reportedBy,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

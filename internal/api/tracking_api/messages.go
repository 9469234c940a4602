package tracking_api

import (
	"time"

	"github.com/BearBump/CrewTrack/internal/models"
)

type AdvanceCheckpointRequest struct {
	SessionID string            `json:"sessionId,omitempty"`
	JobID     string            `json:"jobId,omitempty"`
	JobType   models.JobType    `json:"jobType,omitempty"`
	Status    models.Checkpoint `json:"status"`
	Timestamp *time.Time        `json:"timestamp,omitempty"`
	Lat       *float64          `json:"lat,omitempty"`
	Lng       *float64          `json:"lng,omitempty"`
	Note      *string           `json:"note,omitempty"`
}

type AdvanceCheckpointResponse struct {
	Session     *models.TrackingSession `json:"session"`
	Checkpoint  models.CheckpointRecord `json:"checkpoint"`
	Applied     bool                    `json:"applied"`
	Started     bool                    `json:"started"`
	AllowedNext models.Checkpoint       `json:"allowedNext,omitempty"`
}

type IngestLocationRequest struct {
	SessionID string     `json:"sessionId"`
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type IngestLocationResponse struct{}

type JobRequest struct {
	JobID string `json:"jobId"`
}

type SubmitSignOffRequest struct {
	JobID          string              `json:"jobId"`
	JobType        models.JobType      `json:"jobType"`
	SignerName     string              `json:"signerName"`
	Signature      string              `json:"signature"`
	SignedLocation *models.GeoPoint    `json:"signedLocation,omitempty"`
	Attestations   models.Attestations `json:"attestations"`
}

type GetSignOffRequest struct {
	JobID   string         `json:"jobId"`
	JobType models.JobType `json:"jobType"`
}

package messages

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/models"
)

type LiveEventKind string

const (
	KindLocation   LiveEventKind = "location"
	KindCheckpoint LiveEventKind = "checkpoint"
)

// LiveEvent is what subscribers of a job receive: a crew position or a
// checkpoint transition.
type LiveEvent struct {
	Kind      LiveEventKind  `json:"kind"`
	JobID     string         `json:"job_id"`
	JobType   models.JobType `json:"job_type"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`

	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`

	Status   models.Checkpoint `json:"status,omitempty"`
	Note     *string           `json:"note,omitempty"`
	Terminal bool              `json:"terminal,omitempty"`

	// Origin is the instance that produced the event; relays skip their own.
	Origin string `json:"origin,omitempty"`
}

func (e LiveEvent) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "marshal live event")
	}
	return b, nil
}

func DecodeLiveEvent(b []byte) (LiveEvent, error) {
	var e LiveEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return LiveEvent{}, errors.Wrap(err, "unmarshal live event")
	}
	if e.JobID == "" {
		return LiveEvent{}, errors.New("live event without job id")
	}
	return e, nil
}

func LocationEvent(jobID string, jobType models.JobType, sessionID string, lat, lng float64, at time.Time) LiveEvent {
	return LiveEvent{
		Kind:      KindLocation,
		JobID:     jobID,
		JobType:   jobType,
		SessionID: sessionID,
		Timestamp: at,
		Lat:       &lat,
		Lng:       &lng,
	}
}

func CheckpointEvent(jobID string, jobType models.JobType, sessionID string, rec models.CheckpointRecord) LiveEvent {
	return LiveEvent{
		Kind:      KindCheckpoint,
		JobID:     jobID,
		JobType:   jobType,
		SessionID: sessionID,
		Timestamp: rec.Timestamp,
		Lat:       rec.Lat,
		Lng:       rec.Lng,
		Status:    rec.Status,
		Note:      rec.Note,
		Terminal:  rec.Status == models.TerminalCheckpoint(jobType),
	}
}

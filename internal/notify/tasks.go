package notify

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/models"
)

const (
	TaskCheckpoint = "notify:checkpoint"
	TaskEscalation = "notify:escalation"
)

type EscalationPayload struct {
	SignOffID        string         `json:"signoff_id"`
	JobID            string         `json:"job_id"`
	JobType          models.JobType `json:"job_type"`
	Reason           string         `json:"reason"`
	DiscrepancyFlags []string       `json:"discrepancy_flags,omitempty"`
}

func newCheckpointTask(t models.CheckpointTransition) (*asynq.Task, string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, "", errors.Wrap(err, "marshal checkpoint payload")
	}
	// one task per checkpoint of a session
	id := fmt.Sprintf("checkpoint:%s:%s", t.SessionID, t.Status)
	return asynq.NewTask(TaskCheckpoint, b), id, nil
}

func newEscalationTask(p EscalationPayload) (*asynq.Task, string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, "", errors.Wrap(err, "marshal escalation payload")
	}
	return asynq.NewTask(TaskEscalation, b), "escalation:" + p.SignOffID, nil
}

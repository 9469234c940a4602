package notify

import "context"

type Audience string

const (
	AudienceClient  Audience = "client"
	AudiencePartner Audience = "partner"
	AudienceOps     Audience = "ops"
)

// Message is a rendered notification ready for a delivery channel.
type Message struct {
	Audience Audience `json:"audience"`
	To       string   `json:"to"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	JobID    string   `json:"job_id"`
}

// Channel delivers messages. Its failures are logged by the caller and never
// reach job state.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

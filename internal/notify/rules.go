package notify

import (
	"github.com/BearBump/CrewTrack/internal/models"
)

// Rule says who hears about a checkpoint.
type Rule struct {
	NotifyClient  bool
	NotifyAdmin   bool
	NotifyPartner bool
	ClientMessage string
}

// rules is keyed by the move vocabulary; delivery checkpoints resolve through
// models.CanonicalMove.
var rules = map[models.Checkpoint]Rule{
	models.CheckpointEnRouteToPickup: {
		NotifyClient:  true,
		NotifyAdmin:   true,
		ClientMessage: "Your crew is on the way to the pickup address.",
	},
	models.CheckpointArrivedAtPickup: {
		NotifyClient:  true,
		NotifyAdmin:   true,
		ClientMessage: "Your crew has arrived at the pickup address.",
	},
	models.CheckpointLoading: {
		NotifyAdmin:   true,
		ClientMessage: "Your crew has started loading.",
	},
	models.CheckpointEnRouteToDestination: {
		NotifyClient:  true,
		NotifyAdmin:   true,
		NotifyPartner: true,
		ClientMessage: "Your items are on the way to the destination.",
	},
	models.CheckpointArrivedAtDestination: {
		NotifyClient:  true,
		NotifyAdmin:   true,
		ClientMessage: "Your crew has arrived at the destination.",
	},
	models.CheckpointUnloading: {
		NotifyAdmin:   true,
		ClientMessage: "Your crew has started unloading.",
	},
	models.CheckpointCompleted: {
		NotifyClient:  true,
		NotifyAdmin:   true,
		NotifyPartner: true,
		ClientMessage: "Your job is complete. Please review and sign off.",
	},
}

func RuleFor(t models.JobType, c models.Checkpoint) (Rule, bool) {
	m, ok := models.CanonicalMove(t, c)
	if !ok {
		return Rule{}, false
	}
	r, ok := rules[m]
	return r, ok
}

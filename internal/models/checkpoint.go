package models

// JobType distinguishes the two kinds of jobs a crew can run.
type JobType string

const (
	JobTypeMove     JobType = "move"
	JobTypeDelivery JobType = "delivery"
)

func (t JobType) Valid() bool {
	return t == JobTypeMove || t == JobTypeDelivery
}

// Checkpoint is a stage marker in a job's execution. The set of valid values
// is closed per job type, see Sequence.
type Checkpoint string

// Move checkpoints, canonical order.
const (
	CheckpointEnRouteToPickup      Checkpoint = "en_route_to_pickup"
	CheckpointArrivedAtPickup      Checkpoint = "arrived_at_pickup"
	CheckpointLoading              Checkpoint = "loading"
	CheckpointEnRouteToDestination Checkpoint = "en_route_to_destination"
	CheckpointArrivedAtDestination Checkpoint = "arrived_at_destination"
	CheckpointUnloading            Checkpoint = "unloading"
	CheckpointCompleted            Checkpoint = "completed"
)

// Delivery checkpoints, canonical order. Completed is shared with moves.
const (
	CheckpointEnRoute    Checkpoint = "en_route"
	CheckpointArrived    Checkpoint = "arrived"
	CheckpointDelivering Checkpoint = "delivering"
)

// Phase is the semantic position of a checkpoint, shared by both job types.
type Phase string

const (
	PhaseDeparture Phase = "departure"
	PhaseArrival   Phase = "arrival"
	PhaseWork      Phase = "work"
	PhaseDone      Phase = "done"
)

// Leg tells which address an en-route checkpoint is heading to.
type Leg string

const (
	LegNone        Leg = ""
	LegPickup      Leg = "pickup"
	LegDestination Leg = "destination"
)

var sequences = map[JobType][]Checkpoint{
	JobTypeMove: {
		CheckpointEnRouteToPickup,
		CheckpointArrivedAtPickup,
		CheckpointLoading,
		CheckpointEnRouteToDestination,
		CheckpointArrivedAtDestination,
		CheckpointUnloading,
		CheckpointCompleted,
	},
	JobTypeDelivery: {
		CheckpointEnRoute,
		CheckpointArrived,
		CheckpointDelivering,
		CheckpointCompleted,
	},
}

// deliveryToMove maps the delivery vocabulary onto the move vocabulary so
// notification rules and UI copy are written once.
var deliveryToMove = map[Checkpoint]Checkpoint{
	CheckpointEnRoute:    CheckpointEnRouteToDestination,
	CheckpointArrived:    CheckpointArrivedAtDestination,
	CheckpointDelivering: CheckpointUnloading,
	CheckpointCompleted:  CheckpointCompleted,
}

var moveMeta = map[Checkpoint]struct {
	phase Phase
	leg   Leg
}{
	CheckpointEnRouteToPickup:      {PhaseDeparture, LegPickup},
	CheckpointArrivedAtPickup:      {PhaseArrival, LegNone},
	CheckpointLoading:              {PhaseWork, LegNone},
	CheckpointEnRouteToDestination: {PhaseDeparture, LegDestination},
	CheckpointArrivedAtDestination: {PhaseArrival, LegNone},
	CheckpointUnloading:            {PhaseWork, LegNone},
	CheckpointCompleted:            {PhaseDone, LegNone},
}

// Sequence returns a copy of the canonical checkpoint order for the job type.
func Sequence(t JobType) []Checkpoint {
	seq := sequences[t]
	out := make([]Checkpoint, len(seq))
	copy(out, seq)
	return out
}

// InitialCheckpoint is the checkpoint a session is created with.
func InitialCheckpoint(t JobType) Checkpoint {
	seq := sequences[t]
	if len(seq) == 0 {
		return ""
	}
	return seq[0]
}

// TerminalCheckpoint is the last checkpoint of the job type.
func TerminalCheckpoint(t JobType) Checkpoint {
	seq := sequences[t]
	if len(seq) == 0 {
		return ""
	}
	return seq[len(seq)-1]
}

// Position returns the index of c in the job type's sequence.
func Position(t JobType, c Checkpoint) (int, bool) {
	for i, s := range sequences[t] {
		if s == c {
			return i, true
		}
	}
	return -1, false
}

// ValidFor reports whether c belongs to the job type's vocabulary.
func (c Checkpoint) ValidFor(t JobType) bool {
	_, ok := Position(t, c)
	return ok
}

// Next returns the checkpoint that follows c, or false when c is terminal or
// not part of the job type.
func Next(t JobType, c Checkpoint) (Checkpoint, bool) {
	i, ok := Position(t, c)
	if !ok {
		return "", false
	}
	seq := sequences[t]
	if i+1 >= len(seq) {
		return "", false
	}
	return seq[i+1], true
}

// CanonicalMove maps any checkpoint onto the move vocabulary.
func CanonicalMove(t JobType, c Checkpoint) (Checkpoint, bool) {
	switch t {
	case JobTypeMove:
		if _, ok := moveMeta[c]; ok {
			return c, true
		}
	case JobTypeDelivery:
		m, ok := deliveryToMove[c]
		return m, ok
	}
	return "", false
}

// PhaseOf returns the shared phase of c, empty when c is not part of the job type.
func PhaseOf(t JobType, c Checkpoint) Phase {
	m, ok := CanonicalMove(t, c)
	if !ok {
		return ""
	}
	return moveMeta[m].phase
}

// LegOf reports which address the crew is heading to while at c. Delivery
// jobs only have a destination leg.
func LegOf(t JobType, c Checkpoint) Leg {
	m, ok := CanonicalMove(t, c)
	if !ok {
		return LegNone
	}
	return moveMeta[m].leg
}

// CompletedStatus is the coarse job status written when a job of type t finishes.
func CompletedStatus(t JobType) JobStatus {
	if t == JobTypeDelivery {
		return JobStatusDelivered
	}
	return JobStatusCompleted
}

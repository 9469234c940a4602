package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequence_Move(t *testing.T) {
	require.Equal(t, []Checkpoint{
		CheckpointEnRouteToPickup,
		CheckpointArrivedAtPickup,
		CheckpointLoading,
		CheckpointEnRouteToDestination,
		CheckpointArrivedAtDestination,
		CheckpointUnloading,
		CheckpointCompleted,
	}, Sequence(JobTypeMove))
	require.Equal(t, CheckpointEnRouteToPickup, InitialCheckpoint(JobTypeMove))
	require.Equal(t, CheckpointCompleted, TerminalCheckpoint(JobTypeMove))
}

func TestSequence_ReturnsCopy(t *testing.T) {
	seq := Sequence(JobTypeDelivery)
	seq[0] = "mutated"
	require.Equal(t, CheckpointEnRoute, InitialCheckpoint(JobTypeDelivery))
}

func TestNext(t *testing.T) {
	n, ok := Next(JobTypeDelivery, CheckpointArrived)
	require.True(t, ok)
	require.Equal(t, CheckpointDelivering, n)

	_, ok = Next(JobTypeDelivery, CheckpointCompleted)
	require.False(t, ok)

	_, ok = Next(JobTypeDelivery, CheckpointLoading)
	require.False(t, ok)
}

func TestValidFor(t *testing.T) {
	require.True(t, CheckpointLoading.ValidFor(JobTypeMove))
	require.False(t, CheckpointLoading.ValidFor(JobTypeDelivery))
	require.True(t, CheckpointCompleted.ValidFor(JobTypeDelivery))
	require.False(t, Checkpoint("teleporting").ValidFor(JobTypeMove))
}

func TestCanonicalMove_CoversEveryCheckpoint(t *testing.T) {
	for _, jt := range []JobType{JobTypeMove, JobTypeDelivery} {
		for _, c := range Sequence(jt) {
			m, ok := CanonicalMove(jt, c)
			require.True(t, ok, "%s/%s", jt, c)
			require.True(t, m.ValidFor(JobTypeMove))
			require.NotEmpty(t, PhaseOf(jt, c))
		}
	}
}

func TestPhasesLineUpAcrossJobTypes(t *testing.T) {
	require.Equal(t, PhaseDeparture, PhaseOf(JobTypeDelivery, CheckpointEnRoute))
	require.Equal(t, PhaseArrival, PhaseOf(JobTypeDelivery, CheckpointArrived))
	require.Equal(t, PhaseWork, PhaseOf(JobTypeDelivery, CheckpointDelivering))
	require.Equal(t, PhaseDone, PhaseOf(JobTypeDelivery, CheckpointCompleted))
	require.Equal(t, PhaseWork, PhaseOf(JobTypeMove, CheckpointLoading))
	require.Empty(t, PhaseOf(JobTypeDelivery, CheckpointLoading))
}

func TestLegOf(t *testing.T) {
	require.Equal(t, LegPickup, LegOf(JobTypeMove, CheckpointEnRouteToPickup))
	require.Equal(t, LegDestination, LegOf(JobTypeMove, CheckpointEnRouteToDestination))
	require.Equal(t, LegDestination, LegOf(JobTypeDelivery, CheckpointEnRoute))
	require.Equal(t, LegNone, LegOf(JobTypeMove, CheckpointLoading))
}

func TestCompletedStatus(t *testing.T) {
	require.Equal(t, JobStatusCompleted, CompletedStatus(JobTypeMove))
	require.Equal(t, JobStatusDelivered, CompletedStatus(JobTypeDelivery))
}

func TestTrackingSession_AllowedNext(t *testing.T) {
	s := &TrackingSession{JobType: JobTypeMove, IsActive: true}
	n, ok := s.AllowedNext()
	require.True(t, ok)
	require.Equal(t, CheckpointEnRouteToPickup, n)

	s.Checkpoints = []CheckpointRecord{{Status: CheckpointEnRouteToPickup}}
	n, ok = s.AllowedNext()
	require.True(t, ok)
	require.Equal(t, CheckpointArrivedAtPickup, n)

	s.IsActive = false
	_, ok = s.AllowedNext()
	require.False(t, ok)
}

func TestAttestations_AllPositive(t *testing.T) {
	a := Attestations{
		AllItemsReceived: true, ConditionAccepted: true, NoDamages: true, NoPropertyDamage: true,
		WalkthroughCompleted: true, CrewProfessional: true, CrewOnTime: true, ItemsPlacedCorrectly: true,
		FurnitureReassembled: true, FloorsProtected: true, PackagingRemoved: true, ValuablesAccounted: true,
		InvoiceReviewed: true,
	}
	require.True(t, a.AllPositive())

	no := false
	a.WouldRecommend = &no
	require.False(t, a.AllPositive())

	a.WouldRecommend = nil
	a.FloorsProtected = false
	require.False(t, a.AllPositive())
}

func TestValidationError_MatchesSentinel(t *testing.T) {
	err := Invalid("signerName", "is required")
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "signerName")
}

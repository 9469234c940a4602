package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/CrewTrack/internal/broker/messages"
	"github.com/BearBump/CrewTrack/internal/models"
)

func baseSnapshot() *models.LiveSnapshot {
	return &models.LiveSnapshot{
		JobID:         "job-a",
		JobType:       models.JobTypeMove,
		ActiveSession: true,
		SessionID:     "s1",
		LatestCheckpoint: &models.CheckpointRecord{
			Status:    models.CheckpointEnRouteToPickup,
			Timestamp: t0,
		},
		Pickup:      &models.GeoPoint{Lat: 0, Lng: 0},
		Destination: &models.GeoPoint{Lat: 1, Lng: 1},
	}
}

func TestMerge_LocationRecomputesETA(t *testing.T) {
	snap := baseSnapshot()
	now := t0.Add(time.Hour)

	// ~11.1 km north of the pickup, at 40 km/h
	ev := messages.LocationEvent("job-a", models.JobTypeMove, "s1", 0.1, 0, t0.Add(time.Minute))
	require.Equal(t, MergeApplied, Merge(snap, ev, 40, now))
	require.NotNil(t, snap.LatestLocation)
	require.NotNil(t, snap.ETAMinutes)
	require.Equal(t, 17, *snap.ETAMinutes)
	require.True(t, snap.ETAEstimated)
	require.Equal(t, now, snap.UpdatedAt)

	older := messages.LocationEvent("job-a", models.JobTypeMove, "s1", 5, 5, t0)
	require.Equal(t, MergeStale, Merge(snap, older, 40, now))
	require.Equal(t, 0.1, snap.LatestLocation.Lat)
}

func TestMerge_CheckpointSwitchesLegAndTerminalClears(t *testing.T) {
	snap := baseSnapshot()
	snap.LatestLocation = &models.LocationPoint{Lat: 0, Lng: 0, Timestamp: t0}

	arrived := messages.CheckpointEvent("job-a", models.JobTypeMove, "s1", models.CheckpointRecord{
		Status: models.CheckpointArrivedAtPickup, Timestamp: t0.Add(time.Minute),
	})
	require.Equal(t, MergeApplied, Merge(snap, arrived, 40, t0))
	require.Nil(t, snap.ETAMinutes)
	require.False(t, snap.ETAEstimated)

	enRoute := messages.CheckpointEvent("job-a", models.JobTypeMove, "s1", models.CheckpointRecord{
		Status: models.CheckpointEnRouteToDestination, Timestamp: t0.Add(2 * time.Minute),
	})
	require.Equal(t, MergeApplied, Merge(snap, enRoute, 40, t0))
	require.NotNil(t, snap.ETAMinutes)

	done := messages.CheckpointEvent("job-a", models.JobTypeMove, "s1", models.CheckpointRecord{
		Status: models.CheckpointCompleted, Timestamp: t0.Add(3 * time.Minute),
	})
	require.Equal(t, MergeApplied, Merge(snap, done, 40, t0))
	require.False(t, snap.ActiveSession)
	require.Nil(t, snap.ETAMinutes)
}

func TestMerge_SessionChanges(t *testing.T) {
	snap := baseSnapshot()

	other := messages.LocationEvent("job-a", models.JobTypeMove, "s2", 1, 1, t0)
	require.Equal(t, MergeMismatch, Merge(snap, other, 40, t0))

	start := messages.CheckpointEvent("job-a", models.JobTypeMove, "s2", models.CheckpointRecord{
		Status: models.CheckpointEnRouteToPickup, Timestamp: t0.Add(time.Hour),
	})
	require.Equal(t, MergeApplied, Merge(snap, start, 40, t0))
	require.Equal(t, "s2", snap.SessionID)
	require.True(t, snap.ActiveSession)

	empty := &models.LiveSnapshot{JobID: "job-b", JobType: models.JobTypeDelivery}
	loc := messages.LocationEvent("job-b", models.JobTypeDelivery, "s9", 1, 1, t0)
	require.Equal(t, MergeApplied, Merge(empty, loc, 40, t0))
	require.Equal(t, "s9", empty.SessionID)
	require.Nil(t, empty.ETAMinutes)
}

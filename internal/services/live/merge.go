package live

import (
	"fmt"
	"time"

	"github.com/BearBump/CrewTrack/internal/broker/messages"
	"github.com/BearBump/CrewTrack/internal/geo"
	"github.com/BearBump/CrewTrack/internal/models"
)

type MergeResult int

const (
	MergeApplied MergeResult = iota
	// MergeStale means the event is older than what the snapshot holds.
	MergeStale
	// MergeMismatch means the event belongs to a session the snapshot does
	// not know about; the snapshot must be rebuilt from the store.
	MergeMismatch
)

func snapshotKey(jobID string) string {
	return fmt.Sprintf("job:%s:live", jobID)
}

// Merge applies ev to snap in place.
func Merge(snap *models.LiveSnapshot, ev messages.LiveEvent, speedKmh float64, now time.Time) MergeResult {
	if ev.SessionID != snap.SessionID {
		starts := ev.Kind == messages.KindCheckpoint && ev.Status == models.InitialCheckpoint(snap.JobType)
		if snap.SessionID != "" && !starts {
			return MergeMismatch
		}
		snap.SessionID = ev.SessionID
		snap.ActiveSession = true
		snap.LatestLocation = nil
		snap.LatestCheckpoint = nil
	}

	switch ev.Kind {
	case messages.KindLocation:
		if ev.Lat == nil || ev.Lng == nil {
			return MergeStale
		}
		if snap.LatestLocation != nil && ev.Timestamp.Before(snap.LatestLocation.Timestamp) {
			return MergeStale
		}
		snap.LatestLocation = &models.LocationPoint{Lat: *ev.Lat, Lng: *ev.Lng, Timestamp: ev.Timestamp}
	case messages.KindCheckpoint:
		if snap.LatestCheckpoint != nil && ev.Timestamp.Before(snap.LatestCheckpoint.Timestamp) {
			return MergeStale
		}
		snap.LatestCheckpoint = &models.CheckpointRecord{
			Status:    ev.Status,
			Timestamp: ev.Timestamp,
			Lat:       ev.Lat,
			Lng:       ev.Lng,
			Note:      ev.Note,
		}
		if ev.Terminal {
			snap.ActiveSession = false
		}
	default:
		return MergeStale
	}

	applyETA(snap, speedKmh)
	snap.UpdatedAt = now
	return MergeApplied
}

func applyETA(snap *models.LiveSnapshot, speedKmh float64) {
	snap.ETAMinutes = nil
	snap.ETAEstimated = false
	if !snap.ActiveSession || snap.LatestCheckpoint == nil {
		return
	}
	m, ok := geo.ETA(snap.JobType, snap.LatestCheckpoint.Status, snap.LatestLocation, snap.Pickup, snap.Destination, speedKmh)
	if !ok {
		return
	}
	snap.ETAMinutes = &m
	snap.ETAEstimated = true
}

// Package geo holds the straight-line distance and ETA math used by live
// tracking. Distances are great-circle (haversine) sums between consecutive
// samples; no map matching is attempted.
package geo

import (
	"math"
	"time"

	"github.com/BearBump/CrewTrack/internal/models"
)

const earthRadiusKm = 6371.0

// DefaultAverageSpeedKmh is the assumed crew speed for advisory ETAs.
const DefaultAverageSpeedKmh = 40.0

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(a, b models.GeoPoint) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PathKm sums the distance between consecutive points in the given order.
func PathKm(points []models.GeoPoint) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += HaversineKm(points[i-1], points[i])
	}
	return total
}

// ETAMinutes converts a straight-line distance into whole minutes at the
// given speed, never less than one minute.
func ETAMinutes(distanceKm, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = DefaultAverageSpeedKmh
	}
	minutes := int(math.Round(distanceKm / speedKmh * 60))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// ETA estimates minutes from the latest sample to the target of the active
// leg. It returns false when the checkpoint is not an en-route one or a
// coordinate is missing.
func ETA(jobType models.JobType, current models.Checkpoint, from *models.LocationPoint, pickup, destination *models.GeoPoint, speedKmh float64) (int, bool) {
	if from == nil {
		return 0, false
	}
	var target *models.GeoPoint
	switch models.LegOf(jobType, current) {
	case models.LegPickup:
		target = pickup
	case models.LegDestination:
		target = destination
	default:
		return 0, false
	}
	if target == nil {
		return 0, false
	}
	d := HaversineKm(models.GeoPoint{Lat: from.Lat, Lng: from.Lng}, *target)
	return ETAMinutes(d, speedKmh), true
}

// DurationMinutes is the time from start to end in minutes, zero if end is
// before start.
func DurationMinutes(start, end time.Time) float64 {
	if end.Before(start) {
		return 0
	}
	return end.Sub(start).Minutes()
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Interpolate returns the point at fraction f along the straight segment a-b.
// Good enough for short urban legs; not a geodesic.
func Interpolate(a, b models.GeoPoint, f float64) models.GeoPoint {
	f = math.Max(0, math.Min(1, f))
	return models.GeoPoint{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lng: a.Lng + (b.Lng-a.Lng)*f,
	}
}

package tracker

import (
	"math"

	"github.com/relabs-tech/vehicle_tracker/internal/gps"
)

const earthRadiusM = 6_371_000.0

// Trip accumulates distance traveled between consecutive fixes. A step of
// at least the jump threshold is discarded as a position glitch rather than
// driven distance; the threshold is configurable because receivers differ
// in how badly they jump on reacquisition.
type Trip struct {
	jumpThresholdM float64
	distanceM      float64
	have           bool
	lastLat        float64
	lastLon        float64
}

// NewTrip returns an odometer discarding steps of at least jumpThresholdM
// meters.
func NewTrip(jumpThresholdM float64) *Trip {
	return &Trip{jumpThresholdM: jumpThresholdM}
}

// Advance feeds the next accepted fix. Returns the distance credited for
// this step in meters (zero for the first fix and for discarded jumps).
func (t *Trip) Advance(fix gps.Fix) float64 {
	if !t.have {
		t.have = true
		t.lastLat, t.lastLon = fix.Latitude, fix.Longitude
		return 0
	}

	step := haversineM(t.lastLat, t.lastLon, fix.Latitude, fix.Longitude)
	t.lastLat, t.lastLon = fix.Latitude, fix.Longitude
	if step >= t.jumpThresholdM {
		return 0
	}
	t.distanceM += step
	return step
}

// DistanceKm returns the accumulated trip distance in kilometers.
func (t *Trip) DistanceKm() float64 { return t.distanceM / 1000 }

// haversineM is the great-circle distance between two coordinates in meters.
func haversineM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

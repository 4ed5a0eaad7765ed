// Package geo holds position-fix types and great-circle bearing math for
// seal and particle tracks.
package geo

import (
	"math"
	"time"
)

// Fix is a single position observation for one individual.
type Fix struct {
	ID   string    `json:"id"`
	Time time.Time `json:"time"`
	Lon  float64   `json:"lon"`
	Lat  float64   `json:"lat"`
}

// Track is an ordered sequence of fixes for one individual.
type Track []Fix

// Bearing is the travel direction out of a fix towards its successor.
type Bearing struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Degrees float64   `json:"degrees"`
}

// InitialBearing returns the initial compass bearing of the great-circle
// path from a to b, in degrees clockwise from north, normalized to [0, 360).
func InitialBearing(a, b Fix) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	deltaLon := (b.Lon - a.Lon) * math.Pi / 180

	y := math.Sin(deltaLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLon)

	theta := math.Atan2(y, x)
	deg := math.Mod(theta*180/math.Pi+360, 360)
	// Mod can return 360 when theta*180/pi is a tiny negative number.
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// Bearings converts a track into its bearing series. Each element is the
// bearing from fix i to fix i+1, stamped with fix i's time, so the series is
// one shorter than the track: the final fix has no successor and yields no
// bearing. Tracks with fewer than two fixes yield an empty series.
func Bearings(t Track) []Bearing {
	if len(t) < 2 {
		return nil
	}
	out := make([]Bearing, 0, len(t)-1)
	for i := 0; i < len(t)-1; i++ {
		out = append(out, Bearing{
			ID:      t[i].ID,
			Time:    t[i].Time,
			Degrees: InitialBearing(t[i], t[i+1]),
		})
	}
	return out
}

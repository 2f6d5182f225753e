// Package geo provides the great-circle distance, velocity, and timestamp
// parsing primitives shared by the detectors.
package geo

import (
	"math"
	"time"
)

const earthRadiusKm = 6371.0

// minElapsedHours is the epsilon substituted for elapsed time when the
// candidate event's timestamp does not strictly follow the prior login's
// timestamp, so velocity stays defined (and very large) instead of
// dividing by zero.
const minElapsedHours = 1.0 / 3600.0 // one second

// Point is a (latitude, longitude) pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Haversine returns the great-circle distance between p1 and p2 in
// kilometers, using the mean Earth radius of 6371 km.
func Haversine(p1, p2 Point) float64 {
	lat1 := p1.Lat * math.Pi / 180.0
	lat2 := p2.Lat * math.Pi / 180.0
	dLat := (p2.Lat - p1.Lat) * math.Pi / 180.0
	dLon := (p2.Lon - p1.Lon) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// Velocity returns the ground speed in km/h required to travel from p1 at
// t1 to p2 at t2. When t2 does not strictly follow t1, the elapsed time is
// clamped to a small positive epsilon rather than zero, so the resulting
// velocity is large but finite (and will exceed any plausible threshold).
func Velocity(p1 Point, t1 time.Time, p2 Point, t2 time.Time) float64 {
	distance := Haversine(p1, p2)
	elapsedHours := t2.Sub(t1).Hours()
	if elapsedHours <= 0 {
		elapsedHours = minElapsedHours
	}
	return distance / elapsedHours
}

// ParseTimestamp parses an ISO-8601 timestamp with fractional seconds and a
// trailing "Z", as emitted by the upstream log source.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999Z",
		time.RFC3339Nano,
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Parse(time.RFC3339Nano, s)
}

// FormatTimestamp renders t in the wire format used in alert descriptions:
// ISO-8601 with millisecond precision and a trailing "Z".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

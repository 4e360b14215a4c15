// Package distance computes great-circle distances between GPS positions.
package distance

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusKm is the mean Earth radius used for every distance in the trip.
// orb/geo uses the WGS84 equatorial radius; trip kilometers are accumulated with this one.
const EarthRadiusKm = 6373.0

func deg2rad(d float64) float64 {
	return d * math.Pi / 180
}

// Haversine returns the great-circle distance in km between two positions
// given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := deg2rad(lat1), deg2rad(lat2)
	dPhi := phi2 - phi1
	dLambda := deg2rad(lon2 - lon1)

	a := math.Pow(math.Sin(dPhi/2), 2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Pow(math.Sin(dLambda/2), 2)
	// Rounding can push a slightly above 1 for antipodal points.
	a = math.Min(1, a)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Between returns the distance in km between two orb points ([lon, lat]).
func Between(a, b orb.Point) float64 {
	return Haversine(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}

// Length returns the length in km of the line string.
func Length(ls orb.LineString) float64 {
	total := 0.0
	for i := 1; i < len(ls); i++ {
		total += Between(ls[i-1], ls[i])
	}
	return total
}

// Package geo holds the coordinate math shared by actors and trajectories.
package geo

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

const (
	// EarthRadiusKM is the radius used for great-circle distances.
	EarthRadiusKM = 6373.0
	// MetersPerDegree converts a radius in meters to an approximate radius in degrees.
	MetersPerDegree = 111300.0
)

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// String formats the point as "lat,lon" with exactly six decimals each.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lon, 'f', 6, 64)
}

// Round6 rounds both coordinates to six decimals.
func (p Point) Round6() Point {
	return Point{Lat: round6(p.Lat), Lon: round6(p.Lon)}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Order tells ParseOrdered which coordinate comes first on a line.
type Order string

const (
	OrderLatLon Order = "latlon"
	OrderLonLat Order = "lonlat"
	OrderAuto   Order = "auto"
)

// ParsePoint parses a "lat,lon" string.
func ParsePoint(s string) (Point, error) {
	return ParseOrdered(s, OrderLatLon)
}

// ParseOrdered parses a coordinate pair in the given order. OrderAuto is treated as lat,lon.
// Columns after the second, such as altitude, are ignored.
func ParseOrdered(s string, order Order) (Point, error) {
	cols := strings.SplitN(s, ",", 3)
	if len(cols) < 2 {
		return Point{}, fmt.Errorf("malformed coordinate %q: missing comma", s)
	}
	first, second := cols[0], cols[1]
	a, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return Point{}, fmt.Errorf("malformed coordinate %q: %w", s, err)
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(second), 64)
	if err != nil {
		return Point{}, fmt.Errorf("malformed coordinate %q: %w", s, err)
	}
	if order == OrderLonLat {
		return Point{Lat: b, Lon: a}, nil
	}
	return Point{Lat: a, Lon: b}, nil
}

// HaversineMeters returns the great-circle distance between a and b in meters.
func HaversineMeters(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lon1 := a.Lon * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	lon2 := b.Lon * math.Pi / 180

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	c := 2 * math.Asin(math.Min(1, math.Sqrt(h)))
	return EarthRadiusKM * c * 1000
}

// SampleDisc draws a point uniformly by area from the disc of radiusM meters around center.
// The meters-to-degrees conversion is a flat small-angle approximation and is not polar safe.
func SampleDisc(rng *rand.Rand, center Point, radiusM float64) Point {
	rd := radiusM / MetersPerDegree
	u := rng.Float64()
	v := rng.Float64()

	w := rd * math.Sqrt(u)
	t := 2 * math.Pi * v
	return Point{
		Lat: center.Lat + w*math.Sin(t),
		Lon: center.Lon + w*math.Cos(t),
	}.Round6()
}

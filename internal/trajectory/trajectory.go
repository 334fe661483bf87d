// Package trajectory decides where an actor moves next.
package trajectory

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strings"

	"geoactor-sim/internal/geo"
)

// DefaultWindow is the maximum number of route points one actor replays.
const DefaultWindow = 1000

// ErrRouteExhausted is returned once a replayed route has no points left.
var ErrRouteExhausted = errors.New("route exhausted")

// SourceUnavailableError reports a route source that cannot be used.
type SourceUnavailableError struct {
	Path string
	Err  error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("trajectory source %s unavailable: %v", e.Path, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// Provider yields the next position of an actor.
type Provider interface {
	Next(current geo.Point) (geo.Point, error)
}

// RandomWalk moves to a uniformly sampled point in a disc around the current position.
type RandomWalk struct {
	RadiusM float64
	rand    *rand.Rand
}

// NewRandomWalk returns a random walk drawing from rng.
func NewRandomWalk(radiusM float64, rng *rand.Rand) *RandomWalk {
	return &RandomWalk{RadiusM: radiusM, rand: rng}
}

// Next implements Provider.
func (w *RandomWalk) Next(current geo.Point) (geo.Point, error) {
	return geo.SampleDisc(w.rand, current, w.RadiusM), nil
}

// RouteReplay walks a contiguous window of a pre-loaded route, one point per call.
type RouteReplay struct {
	points []geo.Point
	cursor int
}

// NewRouteReplay picks a random window of at most window points from route.
// The window is capped at the route length, so short routes are replayed whole.
func NewRouteReplay(route []geo.Point, window int, rng *rand.Rand) (*RouteReplay, error) {
	if len(route) == 0 {
		return nil, &SourceUnavailableError{Path: "route", Err: errors.New("no points")}
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if window > len(route) {
		window = len(route)
	}
	start := rng.Intn(len(route) - window + 1)
	points := make([]geo.Point, window)
	copy(points, route[start:start+window])
	return &RouteReplay{points: points}, nil
}

// Next implements Provider. The current position is ignored.
func (r *RouteReplay) Next(geo.Point) (geo.Point, error) {
	if r.cursor >= len(r.points) {
		return geo.Point{}, ErrRouteExhausted
	}
	p := r.points[r.cursor]
	r.cursor++
	return p, nil
}

// Remaining returns the number of points left.
func (r *RouteReplay) Remaining() int {
	return len(r.points) - r.cursor
}

// LoadRoute reads a route file with one coordinate pair per line.
func LoadRoute(path string, order geo.Order) ([]geo.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceUnavailableError{Path: path, Err: err}
	}
	defer f.Close()
	points, err := ReadRoute(f, order)
	if err != nil {
		return nil, &SourceUnavailableError{Path: path, Err: err}
	}
	return points, nil
}

// ReadRoute parses coordinate pairs from r and normalizes them to lat,lon rounded to
// six decimals. With geo.OrderAuto the order is decided for the whole input: a first
// value beyond ±90 means lon,lat, a second value beyond ±90 means lat,lon, otherwise
// lon,lat is assumed.
func ReadRoute(r io.Reader, order geo.Order) ([]geo.Point, error) {
	var raw []geo.Point
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		p, err := geo.ParseOrdered(text, geo.OrderLatLon)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		raw = append(raw, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("no points")
	}

	if order == geo.OrderAuto || order == "" {
		order = detectOrder(raw)
	}
	points := make([]geo.Point, len(raw))
	for i, p := range raw {
		if order == geo.OrderLonLat {
			p = geo.Point{Lat: p.Lon, Lon: p.Lat}
		}
		points[i] = p.Round6()
	}
	return points, nil
}

// detectOrder inspects pairs parsed as (first, second) stored in Lat, Lon.
func detectOrder(pairs []geo.Point) geo.Order {
	for _, p := range pairs {
		if math.Abs(p.Lat) > 90 {
			return geo.OrderLonLat
		}
		if math.Abs(p.Lon) > 90 {
			return geo.OrderLatLon
		}
	}
	return geo.OrderLonLat
}

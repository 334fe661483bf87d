package trajectory

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geoactor-sim/internal/geo"
)

func TestRandomWalkStaysInRadius(t *testing.T) {
	w := NewRandomWalk(300, rand.New(rand.NewSource(1)))
	cur := geo.Point{Lat: 41.411338, Lon: 2.226438}
	for i := 0; i < 500; i++ {
		next, err := w.Next(cur)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if d := geo.HaversineMeters(cur, next); d > 300.5 {
			t.Fatalf("moved %f m, radius 300", d)
		}
		cur = next
	}
}

func TestRouteReplayExhaustsAfterWindow(t *testing.T) {
	route := []geo.Point{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}, {Lat: 3, Lon: 3}, {Lat: 4, Lon: 4}, {Lat: 5, Lon: 5}}
	r, err := NewRouteReplay(route, DefaultWindow, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("new route replay: %v", err)
	}
	for i := 0; i < 5; i++ {
		p, err := r.Next(geo.Point{})
		if err != nil {
			t.Fatalf("next %d: %v", i+1, err)
		}
		if p != route[i] {
			t.Fatalf("next %d = %v, want %v", i+1, p, route[i])
		}
	}
	if _, err := r.Next(geo.Point{}); !errors.Is(err, ErrRouteExhausted) {
		t.Fatalf("6th next error = %v, want ErrRouteExhausted", err)
	}
	if _, err := r.Next(geo.Point{}); !errors.Is(err, ErrRouteExhausted) {
		t.Fatalf("replay must not wrap around")
	}
}

func TestRouteReplayWindowIsContiguous(t *testing.T) {
	route := make([]geo.Point, 50)
	for i := range route {
		route[i] = geo.Point{Lat: float64(i), Lon: 0}
	}
	for seed := int64(0); seed < 20; seed++ {
		r, err := NewRouteReplay(route, 10, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if r.Remaining() != 10 {
			t.Fatalf("window = %d, want 10", r.Remaining())
		}
		first, _ := r.Next(geo.Point{})
		for i := 1; i < 10; i++ {
			p, _ := r.Next(geo.Point{})
			if p.Lat != first.Lat+float64(i) {
				t.Fatalf("window not contiguous: %v after start %v", p, first)
			}
		}
	}
}

func TestNewRouteReplayEmpty(t *testing.T) {
	var sue *SourceUnavailableError
	if _, err := NewRouteReplay(nil, 10, rand.New(rand.NewSource(1))); !errors.As(err, &sue) {
		t.Fatalf("expected SourceUnavailableError, got %v", err)
	}
}

func TestReadRouteOrders(t *testing.T) {
	lonlat := "-73.970813,40.773860\n\n-73.971000,40.774000\n"
	pts, err := ReadRoute(strings.NewReader(lonlat), geo.OrderAuto)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(pts) != 2 || pts[0] != (geo.Point{Lat: 40.77386, Lon: -73.970813}) {
		t.Fatalf("unexpected points %v", pts)
	}

	latlon := "40.773860,-173.970813\n"
	pts, err = ReadRoute(strings.NewReader(latlon), geo.OrderAuto)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if pts[0].Lat != 40.77386 || pts[0].Lon != -173.970813 {
		t.Fatalf("lat,lon not detected: %v", pts[0])
	}

	pts, err = ReadRoute(strings.NewReader("41.4113381,2.2264384"), geo.OrderLatLon)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if pts[0].String() != "41.411338,2.226438" {
		t.Fatalf("not normalized to six decimals: %s", pts[0])
	}

	if _, err := ReadRoute(strings.NewReader("1,2\nfoo\n"), geo.OrderAuto); err == nil {
		t.Fatalf("expected error for malformed line")
	}
}

func TestLoadRouteMissing(t *testing.T) {
	_, err := LoadRoute(filepath.Join(t.TempDir(), "routes.csv"), geo.OrderAuto)
	var sue *SourceUnavailableError
	if !errors.As(err, &sue) {
		t.Fatalf("expected SourceUnavailableError, got %v", err)
	}
}

func TestLoadRouteEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.csv")
	if err := os.WriteFile(path, []byte("\n\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var sue *SourceUnavailableError
	if _, err := LoadRoute(path, geo.OrderAuto); !errors.As(err, &sue) {
		t.Fatalf("expected SourceUnavailableError, got %v", err)
	}
}

func TestReadRouteWithAltitudeColumn(t *testing.T) {
	route := "2.226438,41.411338,12\n2.226500,41.411400,13\n"
	pts, err := ReadRoute(strings.NewReader(route), geo.OrderLonLat)
	if err != nil {
		t.Fatalf("ReadRoute: %v", err)
	}
	if len(pts) != 2 || pts[1].Lat != 41.4114 || pts[1].Lon != 2.2265 {
		t.Fatalf("unexpected points %+v", pts)
	}
}

package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecordsLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	c.ActorSpawned()
	c.ActorSpawned()
	c.ObserveDelivery(nil, 5*time.Millisecond)
	c.ObserveDelivery(errors.New("refused"), time.Millisecond)
	c.ObserveMove(120)
	c.ObserveMove(30)
	c.ActorTerminated("died")

	if got := testutil.ToFloat64(c.Deliveries.WithLabelValues(ResultOK)); got != 1 {
		t.Fatalf("ok deliveries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Deliveries.WithLabelValues(ResultFailed)); got != 1 {
		t.Fatalf("failed deliveries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ActorsAlive); got != 1 {
		t.Fatalf("alive = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.MetersMoved); got != 150 {
		t.Fatalf("meters = %v, want 150", got)
	}
	if got := testutil.ToFloat64(c.Terminations.WithLabelValues("died")); got != 1 {
		t.Fatalf("terminations = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.DeliveryLatency); n != 1 {
		t.Fatalf("latency series = %d, want 1", n)
	}
}

func TestCollectorReRegistersIdempotently(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}
	first.ActorSpawned()
	if got := testutil.ToFloat64(second.Spawns); got != 1 {
		t.Fatalf("collectors not shared: %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ActorSpawned()
	c.ObserveDelivery(nil, time.Second)
	c.ObserveMove(1)
	c.ActorTerminated("canceled")
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	c.ActorSpawned()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "geoactor_actors_alive 1") {
		t.Fatalf("metrics output missing gauge:\n%s", body)
	}
}

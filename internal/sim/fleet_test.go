package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"geoactor-sim/internal/actor"
	"geoactor-sim/internal/config"
	"geoactor-sim/internal/geo"
	"geoactor-sim/internal/observability"
	"geoactor-sim/internal/schema"
	"geoactor-sim/internal/trajectory"
)

func noSleep(context.Context, time.Duration) error { return nil }

func blockSleep(ctx context.Context, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func testFleetConfig() *config.Config {
	cfg := config.Default()
	cfg.Seed = 42
	return &cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFleetRunsUntilAllDie(t *testing.T) {
	cfg := testFleetConfig()
	cfg.Actors = 3
	cfg.SuicideChance = 100
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewCollector(reg)
	if err != nil {
		t.Fatalf("collector: %v", err)
	}
	fields := []schema.Field{{Name: "age", Type: schema.TypeInteger}}
	w := &collectWriter{}

	f, err := NewFleet(cfg, fields, nil, w, WithMetrics(metrics), WithActorOptions(actor.WithSleep(noSleep)))
	if err != nil {
		t.Fatalf("NewFleet: %v", err)
	}
	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	h := f.Health()
	if h.Spawned != 3 || h.Died != 3 || h.Alive != 0 || h.Deliveries != 3 {
		t.Fatalf("unexpected health %+v", h)
	}
	if w.count() != 3 {
		t.Fatalf("expected one snapshot per actor, got %d", w.count())
	}
	if _, ok := w.snaps[0].Field("age"); !ok {
		t.Fatalf("schema field missing from snapshot")
	}
	if got := testutil.ToFloat64(metrics.Terminations.WithLabelValues("died")); got != 3 {
		t.Fatalf("terminations metric = %v", got)
	}
	if got := testutil.ToFloat64(metrics.ActorsAlive); got != 0 {
		t.Fatalf("alive gauge = %v", got)
	}
	if err := f.Spawn(1); !errors.Is(err, ErrFleetNotRunning) {
		t.Fatalf("Spawn after Run = %v, want ErrFleetNotRunning", err)
	}
}

func TestFleetRespawnKeepsPopulation(t *testing.T) {
	cfg := testFleetConfig()
	cfg.Actors = 2
	cfg.SuicideChance = 100
	cfg.Respawn = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &collectWriter{onAdd: func(n int) {
		if n == 10 {
			cancel()
		}
	}}

	f, err := NewFleet(cfg, nil, nil, w, WithRespawnDelay(0), WithActorOptions(actor.WithSleep(noSleep)))
	if err != nil {
		t.Fatalf("NewFleet: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("fleet did not stop after cancel")
	}

	h := f.Health()
	if h.Spawned < 10 || h.Alive != 0 {
		t.Fatalf("expected dead actors to be replaced, health %+v", h)
	}
	if h.Spawned != h.Died+h.Canceled+h.Exhausted+h.Failed {
		t.Fatalf("every spawned actor must terminate exactly once: %+v", h)
	}
}

func TestFleetSpawnAtRuntime(t *testing.T) {
	cfg := testFleetConfig()
	cfg.Actors = 1
	cfg.SuicideChance = 0
	cfg.MovingChance = 0
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := NewFleet(cfg, nil, nil, &collectWriter{}, WithActorOptions(actor.WithSleep(blockSleep)))
	if err != nil {
		t.Fatalf("NewFleet: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	waitFor(t, "first actor", func() bool { return f.Health().Deliveries == 1 })
	if err := f.Spawn(2); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	waitFor(t, "spawned actors", func() bool { return f.Health().Deliveries == 3 })

	actors := f.Actors()
	if len(actors) != 3 {
		t.Fatalf("expected 3 live actors, got %d", len(actors))
	}
	for i := 1; i < len(actors); i++ {
		if actors[i-1].UUID > actors[i].UUID {
			t.Fatalf("actors not ordered by uuid")
		}
	}
	for _, s := range actors {
		if geo.HaversineMeters(s.Location, cfg.Origin()) > cfg.RadiusM+0.5 {
			t.Fatalf("actor born outside the disc: %v", s.Location)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h := f.Health(); h.Canceled != 3 || h.Alive != 0 {
		t.Fatalf("unexpected health after cancel %+v", h)
	}
}

func TestFleetRouteReplayExhausts(t *testing.T) {
	cfg := testFleetConfig()
	cfg.Actors = 2
	cfg.Trajectory = config.TrajectoryRoute
	cfg.MovingChance = 100
	cfg.SuicideChance = 0
	route := []geo.Point{{Lat: 41.41, Lon: 2.22}, {Lat: 41.411, Lon: 2.221}, {Lat: 41.412, Lon: 2.222}}

	w := &collectWriter{}
	f, err := NewFleet(cfg, nil, route, w, WithActorOptions(actor.WithSleep(noSleep)))
	if err != nil {
		t.Fatalf("NewFleet: %v", err)
	}
	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h := f.Health(); h.Exhausted != 2 {
		t.Fatalf("expected both actors to exhaust the route, health %+v", h)
	}
	if w.count() != 8 {
		t.Fatalf("expected 4 emissions per actor, got %d", w.count())
	}
}

func TestFleetRouteRequired(t *testing.T) {
	cfg := testFleetConfig()
	cfg.Trajectory = config.TrajectoryRoute
	_, err := NewFleet(cfg, nil, nil, &collectWriter{})
	var se *trajectory.SourceUnavailableError
	if !errors.As(err, &se) {
		t.Fatalf("expected SourceUnavailableError, got %v", err)
	}
}

func TestFleetWiresSpawnHook(t *testing.T) {
	hook := &stubHookWriter{}
	f, err := NewFleet(testFleetConfig(), nil, nil, NewMultiWriter(hook))
	if err != nil {
		t.Fatalf("NewFleet: %v", err)
	}
	if hook.spawn == nil {
		t.Fatalf("spawn hook not wired")
	}
	if err := hook.spawn(1); !errors.Is(err, ErrFleetNotRunning) {
		t.Fatalf("spawn before Run = %v", err)
	}
	_ = f
}

// Fleet supervising a population of actors
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"geoactor-sim/internal/actor"
	"geoactor-sim/internal/config"
	"geoactor-sim/internal/geo"
	"geoactor-sim/internal/logging"
	"geoactor-sim/internal/observability"
	"geoactor-sim/internal/schema"
	"geoactor-sim/internal/telemetry"
	"geoactor-sim/internal/trajectory"
)

// ErrFleetNotRunning is returned by Spawn outside of Run.
var ErrFleetNotRunning = errors.New("fleet is not running")

// Health summarizes the fleet for the admin surface.
type Health struct {
	Alive            int   `json:"alive"`
	Spawned          int   `json:"spawned"`
	Died             int   `json:"died"`
	Exhausted        int   `json:"route_exhausted"`
	Failed           int   `json:"trajectory_failed"`
	Canceled         int   `json:"canceled"`
	Deliveries       int64 `json:"deliveries"`
	DeliveryFailures int64 `json:"delivery_failures"`
}

type member struct {
	actor *actor.Actor
	last  telemetry.Snapshot
}

// Fleet runs cfg.Actors independent actors, optionally replacing the dead.
// Actors share nothing but the writer and the read-only route.
type Fleet struct {
	cfg          *config.Config
	actorCfg     actor.Config
	fields       []schema.Field
	route        []geo.Point
	writer       SnapshotWriter
	metrics      *observability.Collector
	actorOpts    []actor.Option
	respawnDelay time.Duration

	mu      sync.Mutex
	seeds   *rand.Rand
	members map[string]*member
	health  Health
	group   *errgroup.Group
	gctx    context.Context
}

// FleetOption customizes a Fleet.
type FleetOption func(*Fleet)

// WithMetrics records fleet activity in c.
func WithMetrics(c *observability.Collector) FleetOption { return func(f *Fleet) { f.metrics = c } }

// WithActorOptions appends options to every actor the fleet creates.
func WithActorOptions(opts ...actor.Option) FleetOption {
	return func(f *Fleet) { f.actorOpts = append(f.actorOpts, opts...) }
}

// WithRespawnDelay sets the pause before a dead actor is replaced.
func WithRespawnDelay(d time.Duration) FleetOption { return func(f *Fleet) { f.respawnDelay = d } }

// NewFleet prepares a fleet. route is required when cfg.Trajectory is ROUTE.
func NewFleet(cfg *config.Config, fields []schema.Field, route []geo.Point, writer SnapshotWriter, opts ...FleetOption) (*Fleet, error) {
	if cfg.Trajectory == config.TrajectoryRoute && len(route) == 0 {
		return nil, &trajectory.SourceUnavailableError{Path: cfg.RoutesFilename, Err: errors.New("no route loaded")}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := &Fleet{
		cfg:          cfg,
		actorCfg:     cfg.Actor(),
		fields:       fields,
		route:        route,
		writer:       writer,
		respawnDelay: time.Second,
		seeds:        rand.New(rand.NewSource(seed)),
		members:      make(map[string]*member),
	}
	for _, opt := range opts {
		opt(f)
	}
	if s, ok := writer.(SpawnSetter); ok {
		s.SetSpawner(f.Spawn)
	}
	return f, nil
}

// Run starts the configured actors and blocks until every actor has terminated.
// Canceling ctx terminates all actors.
func (f *Fleet) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	f.mu.Lock()
	f.group, f.gctx = g, gctx
	var err error
	for i := 0; i < f.cfg.Actors && err == nil; i++ {
		err = f.spawnLocked()
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}

	logging.FromContext(ctx).Info("fleet running", "actors", f.cfg.Actors, "respawn", f.cfg.Respawn, "trajectory", f.cfg.Trajectory)
	err = g.Wait()

	f.mu.Lock()
	f.group, f.gctx = nil, nil
	f.mu.Unlock()
	return err
}

// Spawn adds n actors to a running fleet.
func (f *Fleet) Spawn(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.group == nil || f.gctx.Err() != nil {
		return ErrFleetNotRunning
	}
	for i := 0; i < n; i++ {
		if err := f.spawnLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fleet) spawnLocked() error {
	id := uuid.NewString()
	rng := rand.New(rand.NewSource(f.seeds.Int63()))
	traj, err := f.trajectory(rng)
	if err != nil {
		return fmt.Errorf("actor %s: %w", id, err)
	}
	opts := append([]actor.Option{actor.WithRand(rng), actor.WithObserver(f)}, f.actorOpts...)
	ctx := f.gctx
	a := actor.New(ctx, id, f.actorCfg, f.fields, traj, f.writer, opts...)
	f.members[id] = &member{actor: a, last: a.Snapshot()}
	f.health.Spawned++
	f.health.Alive++
	f.metrics.ActorSpawned()

	f.group.Go(func() error {
		t := a.Run(ctx)
		if f.cfg.Respawn && t.Reason != actor.ReasonCanceled {
			if err := sleepContext(ctx, f.respawnDelay); err != nil {
				return nil
			}
			if err := f.Spawn(1); err != nil && !errors.Is(err, ErrFleetNotRunning) {
				logging.FromContext(ctx).Error("respawn failed", "err", err)
			}
		}
		return nil
	})
	return nil
}

func (f *Fleet) trajectory(rng *rand.Rand) (trajectory.Provider, error) {
	if f.cfg.Trajectory == config.TrajectoryRoute {
		return trajectory.NewRouteReplay(f.route, f.cfg.RouteWindow, rng)
	}
	return trajectory.NewRandomWalk(f.cfg.RadiusM, rng), nil
}

// Health returns current counters.
func (f *Fleet) Health() Health {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health
}

// Actors returns the latest snapshot of every live actor, ordered by uuid.
func (f *Fleet) Actors() []telemetry.Snapshot {
	f.mu.Lock()
	out := make([]telemetry.Snapshot, 0, len(f.members))
	for _, m := range f.members {
		out = append(out, m.last)
	}
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UUID != out[j].UUID {
			return out[i].UUID < out[j].UUID
		}
		return out[i].ActorID < out[j].ActorID
	})
	return out
}

// Emitted implements actor.Observer.
func (f *Fleet) Emitted(id string, s telemetry.Snapshot, err error, took time.Duration) {
	f.mu.Lock()
	if m, ok := f.members[id]; ok {
		m.last = s
	}
	f.health.Deliveries++
	if err != nil {
		f.health.DeliveryFailures++
	}
	f.mu.Unlock()
	f.metrics.ObserveDelivery(err, took)
}

// Moved implements actor.Observer.
func (f *Fleet) Moved(_ string, meters int64) {
	f.metrics.ObserveMove(meters)
}

// Terminated implements actor.Observer.
func (f *Fleet) Terminated(t actor.Termination) {
	f.mu.Lock()
	delete(f.members, t.ActorID)
	f.health.Alive--
	switch t.Reason {
	case actor.ReasonDied:
		f.health.Died++
	case actor.ReasonRouteExhausted:
		f.health.Exhausted++
	case actor.ReasonTrajectory:
		f.health.Failed++
	case actor.ReasonCanceled:
		f.health.Canceled++
	}
	f.mu.Unlock()
	f.metrics.ActorTerminated(string(t.Reason))
	if n, ok := f.writer.(TerminationNotifier); ok {
		n.ActorTerminated(t)
	}
}

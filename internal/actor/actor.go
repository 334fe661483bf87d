// Package actor runs the lifecycle of one simulated actor: birth, then repeated
// emit, maybe-die, wait and maybe-move cycles until it terminates.
package actor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"geoactor-sim/internal/geo"
	"geoactor-sim/internal/logging"
	"geoactor-sim/internal/schema"
	"geoactor-sim/internal/telemetry"
	"geoactor-sim/internal/trajectory"
)

// Phase is a lifecycle state.
type Phase int32

const (
	Created Phase = iota
	Running
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Created:
		return "created"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Reason explains why an actor terminated.
type Reason string

const (
	ReasonDied           Reason = "died"
	ReasonRouteExhausted Reason = "route_exhausted"
	ReasonTrajectory     Reason = "trajectory_failed"
	ReasonCanceled       Reason = "canceled"
)

// Sink receives every snapshot the actor emits.
type Sink interface {
	Write(ctx context.Context, s telemetry.Snapshot) error
}

// Observer is notified of lifecycle events. Implementations must be safe for
// concurrent use when shared by several actors.
type Observer interface {
	Emitted(actorID string, s telemetry.Snapshot, err error, took time.Duration)
	Moved(actorID string, meters int64)
	Terminated(t Termination)
}

// DefaultDeliveryTimeout bounds a sink write when Config leaves it unset.
const DefaultDeliveryTimeout = 5 * time.Second

// Config holds the behavior knobs of an actor.
type Config struct {
	Origin          geo.Point
	RadiusM         float64
	WaitSeed        time.Duration
	MovingChance    int
	SuicideChance   int
	DeliveryTimeout time.Duration
	Fields          telemetry.GeneratorConfig
}

// Termination is the final record of an actor, handed to the supervisor.
type Termination struct {
	ActorID     string
	UUID        int64
	Reason      Reason
	Cycles      int
	RouteLength int64
	Err         error
}

// Key matches telemetry.Snapshot.Key for the terminated actor.
func (t Termination) Key() string {
	if t.ActorID != "" {
		return t.ActorID
	}
	return strconv.FormatInt(t.UUID, 10)
}

// Actor is one simulated mobile object. Run must be called at most once.
type Actor struct {
	id       string
	cfg      Config
	state    *telemetry.State
	traj     trajectory.Provider
	sink     Sink
	rand     *rand.Rand
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	observer Observer
	phase    atomic.Int32
	cycles   int
}

// Option customizes an Actor.
type Option func(*Actor)

// WithRand sets the random source used for birth values and lifecycle rolls.
func WithRand(r *rand.Rand) Option { return func(a *Actor) { a.rand = r } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(a *Actor) { a.now = now } }

// WithSleep overrides the wait between cycles.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(a *Actor) { a.sleep = fn }
}

// WithObserver registers lifecycle hooks.
func WithObserver(o Observer) Option {
	return func(a *Actor) {
		if o != nil {
			a.observer = o
		}
	}
}

// New creates an actor in the Created phase: a disc-sampled location around the
// origin, a fresh identifier, route_length 0, and every schema field populated.
// Fields with unknown types are logged and left null.
func New(ctx context.Context, id string, cfg Config, fields []schema.Field, traj trajectory.Provider, sink Sink, opts ...Option) *Actor {
	a := &Actor{
		id:       id,
		cfg:      cfg,
		traj:     traj,
		sink:     sink,
		now:      time.Now,
		sleep:    sleepContext,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cfg.DeliveryTimeout <= 0 {
		a.cfg.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if a.rand == nil {
		a.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	gen := telemetry.NewGenerator(cfg.Fields, a.rand, a.now)
	a.state = telemetry.NewState(gen.Identifier(), geo.SampleDisc(a.rand, cfg.Origin, cfg.RadiusM))
	if err := gen.Populate(a.state, fields); err != nil {
		logging.FromContext(ctx).Warn("field generation incomplete", "actor", id, "err", err)
	}
	a.state.Stamp(a.now())
	return a
}

// ID returns the supervisor-assigned handle of the actor.
func (a *Actor) ID() string { return a.id }

// Phase returns the current lifecycle phase.
func (a *Actor) Phase() Phase { return Phase(a.phase.Load()) }

// Snapshot returns the current state. It must not be called while Run is active;
// observers receive snapshots during Run.
func (a *Actor) Snapshot() telemetry.Snapshot {
	s := a.state.Snapshot()
	s.ActorID = a.id
	return s
}

// Run drives the lifecycle until the actor dies, its trajectory fails, or ctx ends.
func (a *Actor) Run(ctx context.Context) Termination {
	log := logging.FromContext(ctx).With("actor", a.id, "uuid", a.state.UUID)
	a.phase.Store(int32(Running))
	log.Info("actor running", "location", a.state.Location.String())

	for {
		if ctx.Err() != nil {
			return a.terminate(ReasonCanceled, nil)
		}

		a.state.Stamp(a.now())
		a.emit(ctx)
		a.cycles++

		if a.rand.Intn(100) < a.cfg.SuicideChance {
			log.Info("actor died", "cycles", a.cycles, "route_length", a.state.RouteLength)
			return a.terminate(ReasonDied, nil)
		}

		wait := a.cfg.WaitSeed * time.Duration(1+a.rand.Intn(9))
		log.Debug("waiting", "for", wait)
		if err := a.sleep(ctx, wait); err != nil {
			return a.terminate(ReasonCanceled, nil)
		}

		if a.rand.Intn(100) < a.cfg.MovingChance {
			next, err := a.traj.Next(a.state.Location)
			if errors.Is(err, trajectory.ErrRouteExhausted) {
				log.Warn("route exhausted", "cycles", a.cycles)
				return a.terminate(ReasonRouteExhausted, err)
			}
			if err != nil {
				log.Error("trajectory failed", "err", err)
				return a.terminate(ReasonTrajectory, err)
			}
			meters := a.state.MoveTo(next)
			log.Debug("moved", "to", next.String(), "meters", meters)
			a.observer.Moved(a.id, meters)
		}
	}
}

// emit writes the current snapshot. Failures are reported to the observer and
// otherwise ignored; the write is abandoned once DeliveryTimeout elapses even if
// the sink does not honor its context.
func (a *Actor) emit(ctx context.Context) {
	snap := a.Snapshot()
	start := time.Now()

	var err error
	dctx, cancel := context.WithTimeout(ctx, a.cfg.DeliveryTimeout)
	done := make(chan error, 1)
	go func() { done <- a.sink.Write(dctx, snap) }()
	select {
	case err = <-done:
	case <-dctx.Done():
		err = fmt.Errorf("delivery abandoned: %w", dctx.Err())
	}
	cancel()

	if err != nil {
		logging.FromContext(ctx).Error("delivery failed", "actor", a.id, "err", err)
	}
	a.observer.Emitted(a.id, snap, err, time.Since(start))
}

func (a *Actor) terminate(reason Reason, err error) Termination {
	a.phase.Store(int32(Terminated))
	t := Termination{
		ActorID:     a.id,
		UUID:        a.state.UUID,
		Reason:      reason,
		Cycles:      a.cycles,
		RouteLength: a.state.RouteLength,
		Err:         err,
	}
	a.observer.Terminated(t)
	return t
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nopObserver struct{}

func (nopObserver) Emitted(string, telemetry.Snapshot, error, time.Duration) {}
func (nopObserver) Moved(string, int64)                                      {}
func (nopObserver) Terminated(Termination)                                   {}

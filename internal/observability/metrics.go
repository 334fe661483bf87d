package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery results used as the "result" label.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Collector bundles the Prometheus metrics of an actor fleet. All methods are
// safe to call on a nil *Collector.
type Collector struct {
	gatherer prometheus.Gatherer

	Deliveries      *prometheus.CounterVec
	DeliveryLatency prometheus.Histogram
	ActorsAlive     prometheus.Gauge
	Spawns          prometheus.Counter
	Terminations    *prometheus.CounterVec
	Moves           prometheus.Counter
	MetersMoved     prometheus.Counter
}

// NewCollector registers fleet metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice against the same registry
// returns the already registered collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	deliveries, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoactor_deliveries_total",
		Help: "Snapshots handed to the sink, labeled by result.",
	}, []string{"result"}), "geoactor_deliveries_total")
	if err != nil {
		return nil, err
	}
	latency, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoactor_delivery_duration_seconds",
		Help:    "Time spent writing one snapshot to the sink.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}), "geoactor_delivery_duration_seconds")
	if err != nil {
		return nil, err
	}
	alive, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geoactor_actors_alive",
		Help: "Actors currently running.",
	}), "geoactor_actors_alive")
	if err != nil {
		return nil, err
	}
	spawns, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoactor_spawns_total",
		Help: "Actors created since start.",
	}), "geoactor_spawns_total")
	if err != nil {
		return nil, err
	}
	terminations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoactor_terminations_total",
		Help: "Actors terminated, labeled by reason.",
	}, []string{"reason"}), "geoactor_terminations_total")
	if err != nil {
		return nil, err
	}
	moves, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoactor_moves_total",
		Help: "Movement steps taken by all actors.",
	}), "geoactor_moves_total")
	if err != nil {
		return nil, err
	}
	meters, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoactor_meters_moved_total",
		Help: "Rounded great-circle meters travelled by all actors.",
	}), "geoactor_meters_moved_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		Deliveries:      deliveries,
		DeliveryLatency: latency,
		ActorsAlive:     alive,
		Spawns:          spawns,
		Terminations:    terminations,
		Moves:           moves,
		MetersMoved:     meters,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// ObserveDelivery records one sink write.
func (c *Collector) ObserveDelivery(err error, took time.Duration) {
	if c == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	c.Deliveries.WithLabelValues(result).Inc()
	c.DeliveryLatency.Observe(took.Seconds())
}

// ActorSpawned counts a new actor and raises the alive gauge.
func (c *Collector) ActorSpawned() {
	if c == nil {
		return
	}
	c.Spawns.Inc()
	c.ActorsAlive.Inc()
}

// ActorTerminated records a termination and lowers the alive gauge.
func (c *Collector) ActorTerminated(reason string) {
	if c == nil {
		return
	}
	c.Terminations.WithLabelValues(reason).Inc()
	c.ActorsAlive.Dec()
}

// ObserveMove records one movement step.
func (c *Collector) ObserveMove(meters int64) {
	if c == nil {
		return
	}
	c.Moves.Inc()
	c.MetersMoved.Add(float64(meters))
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}

// YAML config loader with CUE validation and environment overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"geoactor-sim/internal/actor"
	"geoactor-sim/internal/geo"
	"geoactor-sim/internal/telemetry"
	"geoactor-sim/internal/trajectory"
)

// Trajectory modes.
const (
	TrajectoryRandom = "RANDOM"
	TrajectoryRoute  = "ROUTE"
)

// Sink names accepted in Sinks.
const (
	SinkHTTP     = "http"
	SinkStdout   = "stdout"
	SinkFile     = "file"
	SinkGreptime = "greptime"
	SinkTUI      = "tui"
)

// Range is an inclusive integer range.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Greptime holds the GreptimeDB sink connection.
type Greptime struct {
	Endpoint string `yaml:"endpoint"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// HTTPSink tunes the collector writer.
type HTTPSink struct {
	Gzip      bool    `yaml:"gzip"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// FileSink configures the rotating JSONL snapshot log.
type FileSink struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration of a simulation run.
type Config struct {
	Listener        string        `yaml:"listener"`
	Latitude        float64       `yaml:"latitude"`
	Longitude       float64       `yaml:"longitude"`
	RadiusM         float64       `yaml:"radius_m"`
	IDLength        int           `yaml:"id_length"`
	Age             Range         `yaml:"age"`
	Temperature     Range         `yaml:"temperature"`
	Speed           Range         `yaml:"speed"`
	WaitSecsSeed    float64       `yaml:"wait_secs_seed"`
	MovingChance    int           `yaml:"moving_chance"`
	SuicideChance   int           `yaml:"suicide_chance"`
	Trajectory      string        `yaml:"trajectory"`
	RoutesFilename  string        `yaml:"routes_filename"`
	RouteWindow     int           `yaml:"route_window"`
	RouteOrder      string        `yaml:"route_order"`
	Appdef          string        `yaml:"appdef"`
	AppdefFile      string        `yaml:"appdef_file"`
	Actors          int           `yaml:"actors"`
	Respawn         bool          `yaml:"respawn"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	Sinks           []string      `yaml:"sinks"`
	HTTP            HTTPSink      `yaml:"http"`
	File            FileSink      `yaml:"file"`
	Greptime        Greptime      `yaml:"greptime"`
	AdminAddr       string        `yaml:"admin_addr"`
	Seed            int64         `yaml:"seed"`
	Log             Log           `yaml:"log"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Listener:        "http://localhost:8080/",
		Latitude:        41.411338,
		Longitude:       2.226438,
		RadiusM:         300,
		IDLength:        6,
		Age:             Range{Min: 16, Max: 60},
		Temperature:     Range{Min: 50, Max: 100},
		Speed:           Range{Min: 10, Max: 120},
		WaitSecsSeed:    5,
		MovingChance:    66,
		SuicideChance:   2,
		Trajectory:      TrajectoryRandom,
		RoutesFilename:  "routes.csv",
		RouteWindow:     trajectory.DefaultWindow,
		RouteOrder:      string(geo.OrderAuto),
		Actors:          1,
		DeliveryTimeout: actor.DefaultDeliveryTimeout,
		Sinks:           []string{SinkHTTP},
		File:            FileSink{MaxSizeMB: 100, MaxBackups: 3},
		Greptime:        Greptime{Port: 4001, Database: "public", Table: telemetry.SnapshotTableName},
		Log:             Log{Level: "info", Format: "text"},
	}
}

// Load builds a Config from defaults, an optional YAML file validated against the
// CUE schema (the embedded one when cueSchemaPath is empty) and environment
// overrides, in that order.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	cfg := Default()
	if configPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", configPath, err)
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.Latitude >= -90 && c.Latitude <= 90, "latitude %v out of range", c.Latitude)
	check(c.Longitude >= -180 && c.Longitude <= 180, "longitude %v out of range", c.Longitude)
	check(c.RadiusM >= 0, "radius must not be negative, got %v", c.RadiusM)
	check(c.IDLength >= 1 && c.IDLength <= 18, "id length %d not in 1..18", c.IDLength)
	for name, r := range map[string]Range{"age": c.Age, "temperature": c.Temperature, "speed": c.Speed} {
		check(r.Min <= r.Max, "%s min %d greater than max %d", name, r.Min, r.Max)
	}
	check(c.WaitSecsSeed >= 0, "wait seed must not be negative")
	check(c.MovingChance >= 0 && c.MovingChance <= 100, "moving chance %d not in 0..100", c.MovingChance)
	check(c.SuicideChance >= 0 && c.SuicideChance <= 100, "suicide chance %d not in 0..100", c.SuicideChance)
	check(c.Trajectory == TrajectoryRandom || c.Trajectory == TrajectoryRoute, "unknown trajectory %q", c.Trajectory)
	if c.Trajectory == TrajectoryRoute {
		check(c.RoutesFilename != "", "routes file required for ROUTE trajectory")
	}
	check(c.RouteWindow > 0, "route window must be positive")
	switch geo.Order(c.RouteOrder) {
	case geo.OrderAuto, geo.OrderLatLon, geo.OrderLonLat:
	default:
		check(false, "unknown route order %q", c.RouteOrder)
	}
	check(c.Actors >= 0, "actors must not be negative")
	check(c.DeliveryTimeout > 0, "delivery timeout must be positive, got %s", c.DeliveryTimeout)
	for _, s := range c.Sinks {
		switch s {
		case SinkHTTP, SinkStdout, SinkFile, SinkGreptime, SinkTUI:
		default:
			check(false, "unknown sink %q", s)
		}
	}
	if c.HasSink(SinkHTTP) {
		check(c.Listener != "", "listener required for http sink")
	}
	if c.HasSink(SinkFile) {
		check(c.File.Path != "", "file.path required for file sink")
	}
	if c.HasSink(SinkGreptime) {
		check(c.Greptime.Endpoint != "", "greptime.endpoint required for greptime sink")
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// HasSink reports whether name is among the configured sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// Origin is the center of every birth disc.
func (c *Config) Origin() geo.Point {
	return geo.Point{Lat: c.Latitude, Lon: c.Longitude}
}

// Generator returns the field generator ranges.
func (c *Config) Generator() telemetry.GeneratorConfig {
	return telemetry.GeneratorConfig{
		IDLength: c.IDLength,
		Age:      telemetry.Bounds(c.Age),
		Temp:     telemetry.Bounds(c.Temperature),
		Speed:    telemetry.Bounds(c.Speed),
	}
}

// Actor returns the lifecycle settings shared by every actor.
func (c *Config) Actor() actor.Config {
	return actor.Config{
		Origin:          c.Origin(),
		RadiusM:         c.RadiusM,
		WaitSeed:        time.Duration(c.WaitSecsSeed * float64(time.Second)),
		MovingChance:    c.MovingChance,
		SuicideChance:   c.SuicideChance,
		DeliveryTimeout: c.DeliveryTimeout,
		Fields:          c.Generator(),
	}
}

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// ApplyEnv overrides cfg with the environment variables understood by the
// simulator. lookup is usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var firstErr error
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}
	fail := func(key string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("env %s: %w", key, err)
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := cast.ToIntE(strings.TrimSpace(v))
			if err != nil {
				fail(key, err)
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			f, err := cast.ToFloat64E(strings.TrimSpace(v))
			if err != nil {
				fail(key, err)
				return
			}
			*dst = f
		}
	}

	setString("LISTENER", &cfg.Listener)
	setFloat("LATITUDE", &cfg.Latitude)
	setFloat("LONGITUDE", &cfg.Longitude)
	setFloat("RADIUS", &cfg.RadiusM)
	setInt("MY_ID_LENGTH", &cfg.IDLength)
	setInt("AGE_MIN", &cfg.Age.Min)
	setInt("AGE_MAX", &cfg.Age.Max)
	setInt("TEMP_MIN", &cfg.Temperature.Min)
	setInt("TEMP_MAX", &cfg.Temperature.Max)
	setInt("SPEED_MIN", &cfg.Speed.Min)
	setInt("SPEED_MAX", &cfg.Speed.Max)
	setFloat("WAIT_SECS_SEED", &cfg.WaitSecsSeed)
	setInt("MOVING_CHANCE", &cfg.MovingChance)
	setInt("SUICIDE_CHANCE", &cfg.SuicideChance)
	// Anything but RANDOM selects route replay.
	if v, ok := get("TRAJECTORY"); ok {
		if strings.EqualFold(strings.TrimSpace(v), TrajectoryRandom) {
			cfg.Trajectory = TrajectoryRandom
		} else {
			cfg.Trajectory = TrajectoryRoute
		}
	}
	setString("ROUTES_FILENAME", &cfg.RoutesFilename)
	setString("APPDEF", &cfg.Appdef)
	setInt("ACTORS", &cfg.Actors)
	if v, ok := get("DELIVERY_TIMEOUT"); ok {
		v = strings.TrimSpace(v)
		if !strings.ContainsAny(v, "nsuµmh") {
			v += "s"
		}
		d, err := cast.ToDurationE(v)
		if err != nil {
			fail("DELIVERY_TIMEOUT", err)
		} else {
			cfg.DeliveryTimeout = d
		}
	}
	setString("GREPTIMEDB_ENDPOINT", &cfg.Greptime.Endpoint)
	setString("GREPTIMEDB_TABLE", &cfg.Greptime.Table)
	return firstErr
}

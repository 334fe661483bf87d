package main

import (
	"context"
	"fmt"

	"geoactor-sim/internal/config"
	"geoactor-sim/internal/logging"
	"geoactor-sim/internal/schema"
	"geoactor-sim/internal/sim"
)

// newWriter builds the configured sinks plus any extra writers behind one
// MultiWriter. The caller closes it.
func newWriter(cfg *config.Config, extra ...sim.SnapshotWriter) (*sim.MultiWriter, error) {
	var ws []sim.SnapshotWriter
	fail := func(err error) (*sim.MultiWriter, error) {
		_ = sim.NewMultiWriter(ws...).Close()
		return nil, err
	}
	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkHTTP:
			ws = append(ws, sim.NewHTTPWriter(cfg.Listener,
				sim.WithGzip(cfg.HTTP.Gzip),
				sim.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.Burst)))
		case config.SinkStdout:
			ws = append(ws, sim.NewStdoutWriter())
		case config.SinkFile:
			fw, err := sim.NewFileWriter(cfg.File.Path, sim.FileOptions{
				MaxSizeMB:  cfg.File.MaxSizeMB,
				MaxBackups: cfg.File.MaxBackups,
				Compress:   cfg.File.Compress,
			})
			if err != nil {
				return fail(err)
			}
			ws = append(ws, fw)
		case config.SinkGreptime:
			gw, err := sim.NewGreptimeDBWriter(cfg.Greptime.Endpoint, cfg.Greptime.Port, cfg.Greptime.Database, cfg.Greptime.Table)
			if err != nil {
				return fail(fmt.Errorf("greptime: %w", err))
			}
			ws = append(ws, gw)
		case config.SinkTUI:
			ws = append(ws, sim.NewTUIWriter(rootCmd.Use))
		default:
			return fail(fmt.Errorf("unknown sink %q", name))
		}
	}
	ws = append(ws, extra...)
	return sim.NewMultiWriter(ws...), nil
}

// loadFields reads the application definition. A malformed definition is logged
// and the actors carry reserved fields only.
func loadFields(ctx context.Context, cfg *config.Config) []schema.Field {
	var (
		def schema.Definition
		err error
	)
	if cfg.AppdefFile != "" {
		def, err = schema.Load(cfg.AppdefFile)
	} else {
		def, err = schema.Parse(cfg.Appdef)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("ignoring application definition", "err", err)
		return nil
	}
	return def.Fields
}

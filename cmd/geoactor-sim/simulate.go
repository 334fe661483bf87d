package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"geoactor-sim/internal/admin"
	"geoactor-sim/internal/config"
	"geoactor-sim/internal/geo"
	"geoactor-sim/internal/logging"
	"geoactor-sim/internal/observability"
	"geoactor-sim/internal/sim"
	"geoactor-sim/internal/trajectory"
)

var (
	simConfigPath string
	simSchemaPath string
	simSinks      []string
	simListener   string
	simActors     int
	simRespawn    bool
	simLogFile    string
	simAdminAddr  string
	simAppdefFile string
	simSeed       int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the actor fleet",
	Long:  "simulate starts the configured number of actors, each emitting snapshots to the configured sinks until it dies.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}
		applySimulateFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stream := sim.NewBroadcaster()
		writer, err := newWriter(cfg, stream)
		if err != nil {
			return err
		}
		defer writer.Close()

		// The TUI owns the terminal; logs go to its viewport instead.
		var logOut io.Writer = os.Stderr
		if lw := writer.LogWriter(); lw != nil {
			logOut = lw
		}
		log := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)
		if cmd.Flags().Changed("log-level") || cmd.Flags().Changed("log-format") {
			log = logging.New(logLevel, logFormat, logOut)
		}
		slog.SetDefault(log)
		ctx = logging.NewContext(ctx, log)

		fields := loadFields(ctx, cfg)
		var route []geo.Point
		if cfg.Trajectory == config.TrajectoryRoute {
			if route, err = trajectory.LoadRoute(cfg.RoutesFilename, geo.Order(cfg.RouteOrder)); err != nil {
				return err
			}
			log.Info("route loaded", "file", cfg.RoutesFilename, "points", len(route))
		}

		metrics, err := observability.NewCollector(prometheus.NewRegistry())
		if err != nil {
			return err
		}
		fleet, err := sim.NewFleet(cfg, fields, route, writer, sim.WithMetrics(metrics))
		if err != nil {
			return err
		}

		if cfg.AdminAddr != "" {
			srv := admin.NewServer(fleet, metrics.Handler(), stream)
			go func() {
				if err := srv.Start(ctx, cfg.AdminAddr, func() { writer.SetAdminStatus(true) }); err != nil {
					log.Error("admin server failed", "err", err)
					writer.SetAdminStatus(false)
				}
			}()
		}

		log.Info("simulation starting", "actors", cfg.Actors, "fields", len(fields), "sinks", cfg.Sinks)
		err = fleet.Run(ctx)
		h := fleet.Health()
		log.Info("simulation stopped", "spawned", h.Spawned, "died", h.Died, "route_exhausted", h.Exhausted,
			"deliveries", h.Deliveries, "delivery_failures", h.DeliveryFailures)
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// applySimulateFlags lets explicitly set flags win over file and environment.
func applySimulateFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("sink") {
		cfg.Sinks = simSinks
	}
	if flags.Changed("listener") {
		cfg.Listener = simListener
	}
	if flags.Changed("actors") {
		cfg.Actors = simActors
	}
	if flags.Changed("respawn") {
		cfg.Respawn = simRespawn
	}
	if flags.Changed("log-file") {
		cfg.File.Path = simLogFile
		if !cfg.HasSink(config.SinkFile) {
			cfg.Sinks = append(cfg.Sinks, config.SinkFile)
		}
	}
	if flags.Changed("admin-addr") {
		cfg.AdminAddr = simAdminAddr
	}
	if flags.Changed("appdef-file") {
		cfg.AppdefFile = simAppdefFile
	}
	if flags.Changed("seed") {
		cfg.Seed = simSeed
	}
}

func init() {
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "", "Path to simulation configuration YAML")
	simulateCmd.Flags().StringVar(&simSchemaPath, "cue-schema", "", "Path to a CUE schema overriding the embedded one")
	simulateCmd.Flags().StringSliceVar(&simSinks, "sink", nil, "Sinks to write to (http, stdout, file, greptime, tui)")
	simulateCmd.Flags().StringVar(&simListener, "listener", "", "Collector URL for the http sink")
	simulateCmd.Flags().IntVar(&simActors, "actors", 1, "Number of actors to start")
	simulateCmd.Flags().BoolVar(&simRespawn, "respawn", false, "Replace actors that die")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Also append snapshots to this JSONL file")
	simulateCmd.Flags().StringVar(&simAdminAddr, "admin-addr", "", "Address of the admin HTTP server (e.g. :8080)")
	simulateCmd.Flags().StringVar(&simAppdefFile, "appdef-file", "", "Read the application definition from a file instead of APPDEF")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed (0 picks one from the clock)")
}

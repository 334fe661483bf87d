package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"geoactor-sim/internal/config"
	"geoactor-sim/internal/logging"
	"geoactor-sim/internal/sim"
)

var (
	replayInput  string
	replaySpeed  float64
	replayConfig string
	replaySinks  []string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a snapshot log file",
	Long:  "replay feeds snapshots from a JSONL log back into the configured sinks, honoring their event timestamps.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := config.Load(replayConfig, "")
		if err != nil {
			return err
		}
		cfg.Sinks = replaySinks
		if err := cfg.Validate(); err != nil {
			return err
		}
		writer, err := newWriter(cfg)
		if err != nil {
			return err
		}
		defer writer.Close()

		n, err := sim.ReplayLogFile(cmd.Context(), replayInput, writer, replaySpeed)
		logging.FromContext(cmd.Context()).Info("replay finished", "snapshots", n)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to snapshot log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 disables delays)")
	replayCmd.Flags().StringVar(&replayConfig, "config", "", "Path to configuration YAML for sink settings")
	replayCmd.Flags().StringSliceVar(&replaySinks, "sink", []string{config.SinkStdout}, "Sinks to replay into")
	replayCmd.MarkFlagRequired("input")
}

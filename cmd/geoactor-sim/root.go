package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"geoactor-sim/internal/logging"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "geoactor-sim",
	Short: "Geo actor telemetry simulator",
	Long:  "geoactor-sim runs a population of mobile actors that report schema-driven telemetry snapshots while they move around a point of origin.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := logging.New(logLevel, logFormat, os.Stderr)
		slog.SetDefault(logger)
		cmd.SetContext(logging.NewContext(cmd.Context(), logger))
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(sampleCmd)
}

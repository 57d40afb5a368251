// Package main provides the FieldAudit CLI.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blue-harvest-ops/fieldaudit/internal/config"
	pkgconfig "github.com/blue-harvest-ops/fieldaudit/pkg/config"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "fieldaudit",
	Short: "FieldAudit - field service anomaly detection and alerting",
	Long: `FieldAudit cross-checks technician activity reports against timesheets,
remote support sessions, and leave records, raises alerts on billing
anomalies, and drives each alert through an escalation workflow.

Examples:
  # Run a one-shot detection over an exported record batch
  fieldaudit analyze records.json

  # Run the alerting service
  fieldaudit serve --config /etc/fieldaudit/config.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fieldaudit %s\n", pkgconfig.Version)
		fmt.Printf("  commit: %s\n", pkgconfig.Commit)
		fmt.Printf("  built:  %s\n", pkgconfig.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the configured file, or defaults when none is given.
func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the root logger every component receives.
func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var w io.Writer = os.Stderr
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blue-harvest-ops/fieldaudit/internal/alert"
	"github.com/blue-harvest-ops/fieldaudit/internal/detect"
	"github.com/blue-harvest-ops/fieldaudit/internal/ingest"
	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

var analyzeFindingsOnly bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <records-file>",
	Short: "Run one detection pass over an exported record batch",
	Long: `Analyze loads a JSON or YAML record batch, runs all detectors over it,
and prints the findings and the alerts they produce as JSON. Nothing is
delivered or tracked; use serve for the full workflow.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeFindingsOnly, "findings-only", false, "print findings without building alerts")
	rootCmd.AddCommand(analyzeCmd)
}

// analyzeReport is the JSON document analyze prints.
type analyzeReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Findings    []models.Finding `json:"findings"`
	Alerts      []models.Alert   `json:"alerts,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	records, err := ingest.NewLoader(logger).LoadFile(args[0])
	if err != nil {
		return err
	}

	runner, err := detect.NewDefaultRunner(cfg.Detection, logger)
	if err != nil {
		return fmt.Errorf("build detectors: %w", err)
	}

	now := time.Now()
	report := analyzeReport{
		GeneratedAt: now,
		Findings:    runner.Run(cmd.Context(), records, now),
	}
	if !analyzeFindingsOnly {
		factory := alert.NewFactory(cfg.Directory, func() time.Time { return now })
		report.Alerts = factory.FromFindings(report.Findings)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	logger.Info().
		Int("findings", len(report.Findings)).
		Int("alerts", len(report.Alerts)).
		Msg("analysis complete")
	return nil
}

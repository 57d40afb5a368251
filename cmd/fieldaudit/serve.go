package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blue-harvest-ops/fieldaudit/internal/alert"
	"github.com/blue-harvest-ops/fieldaudit/internal/api"
	"github.com/blue-harvest-ops/fieldaudit/internal/api/health"
	"github.com/blue-harvest-ops/fieldaudit/internal/config"
	"github.com/blue-harvest-ops/fieldaudit/internal/detect"
	"github.com/blue-harvest-ops/fieldaudit/internal/metrics"
	"github.com/blue-harvest-ops/fieldaudit/internal/models"
	"github.com/blue-harvest-ops/fieldaudit/internal/notifier"
	"github.com/blue-harvest-ops/fieldaudit/internal/storage"
	"github.com/blue-harvest-ops/fieldaudit/internal/workflow"
	pkgconfig "github.com/blue-harvest-ops/fieldaudit/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection and alerting service",
	Long: `Serve runs the full service: the operations API, the alert workflow
with grouping, escalations and follow-ups, the configured notification
channels, and optional SQLite audit persistence.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// detectPipeline bundles the pieces a detection run needs. Rebuilt as a
// whole on config reload and swapped atomically.
type detectPipeline struct {
	runner  *detect.Runner
	factory *alert.Factory
}

func newDetectPipeline(cfg *config.Config, log zerolog.Logger) (*detectPipeline, error) {
	runner, err := detect.NewDefaultRunner(cfg.Detection, log)
	if err != nil {
		return nil, fmt.Errorf("build detectors: %w", err)
	}
	return &detectPipeline{
		runner:  runner,
		factory: alert.NewFactory(cfg.Directory, nil),
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Server.Verbose = cfg.Server.Verbose || verbose
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Notification channels
	dispatcher := notifier.NewDispatcherWithRateLimit(cfg.Notifications.RateLimit)
	defer dispatcher.Close()

	if cfg.Notifications.LogEnabled {
		dispatcher.Register(notifier.NewLogNotifier(logger))
	}
	if cfg.Notifications.SlackEnabled {
		slack, err := notifier.NewSlackNotifier(cfg.Notifications.Slack)
		if err != nil {
			return fmt.Errorf("slack notifier: %w", err)
		}
		dispatcher.Register(slack)
	}

	// Audit persistence
	var store *storage.Store
	var managerOpts []workflow.Option
	if cfg.Storage.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o750); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		store = storage.NewStore(cfg.Storage.Path)
		if err := store.Open(); err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		defer store.Close()
		managerOpts = append(managerOpts, workflow.WithRecorder(store))
		logger.Info().Str("path", cfg.Storage.Path).Msg("audit store opened")
	}

	// Workflow
	manager := workflow.NewManager(cfg.Workflow, dispatcher, logger, managerOpts...)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	defer manager.Stop()

	// Detection pipeline, swappable on config reload
	var pipeline atomic.Pointer[detectPipeline]
	p, err := newDetectPipeline(cfg, logger)
	if err != nil {
		return err
	}
	pipeline.Store(p)

	// Operations API
	var history api.HistoryStore
	if store != nil {
		history = store
	}
	srv, err := api.New(&cfg.Server, manager, history, logger)
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}
	srv.RegisterDetection(func(ctx context.Context, rs models.RecordSet) ([]workflow.AlertTracking, error) {
		pl := pipeline.Load()
		findings := pl.runner.Run(ctx, rs, time.Now())
		return manager.ProcessAlerts(ctx, pl.factory.FromFindings(findings)), nil
	})
	srv.RegisterHealthChecker(health.NewNotifierChecker(dispatcher.Count))
	if store != nil {
		srv.RegisterHealthChecker(health.NewStoreChecker(store))
	}

	logger.Info().Str("version", pkgconfig.Version).Msg("starting fieldaudit")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(ctx)
	})

	if cfg.Metrics.Enabled {
		msrv := metrics.NewServer(cfg.Metrics.Address)
		g.Go(func() error {
			logger.Info().Str("address", msrv.Addr()).Msg("metrics listening")
			return msrv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return msrv.Shutdown(shutdownCtx)
		})
	}

	if configFile != "" {
		watcher, err := config.NewWatcher(configFile, logger, func(next *config.Config) {
			pl, err := newDetectPipeline(next, logger)
			if err != nil {
				logger.Error().Err(err).Msg("reloaded detection config rejected")
				return
			}
			pipeline.Store(pl)
		})
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		g.Go(func() error {
			if err := watcher.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if store != nil {
		g.Go(func() error {
			return runMaintenance(ctx, cfg, store, manager, logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("fieldaudit stopped")
	return nil
}

// runMaintenance snapshots workflow state and prunes expired events until
// the context ends, then writes one final snapshot.
func runMaintenance(ctx context.Context, cfg *config.Config, store *storage.Store, manager *workflow.Manager, logger zerolog.Logger) error {
	snapshots := time.NewTicker(cfg.Storage.SnapshotInterval)
	defer snapshots.Stop()
	prunes := time.NewTicker(cfg.Storage.PruneInterval)
	defer prunes.Stop()

	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.SaveSnapshot(saveCtx, manager.ExportSnapshot()); err != nil {
				logger.Error().Err(err).Msg("final snapshot failed")
			}
			return nil

		case <-snapshots.C:
			if err := store.SaveSnapshot(ctx, manager.ExportSnapshot()); err != nil {
				logger.Error().Err(err).Msg("snapshot failed")
			}

		case <-prunes.C:
			cutoff := time.Now().Add(-cfg.Storage.Retention)
			pruned, err := store.PruneEvents(ctx, cutoff)
			if err != nil {
				logger.Error().Err(err).Msg("prune failed")
				continue
			}
			if pruned > 0 {
				logger.Info().Int64("events", pruned).Msg("pruned expired audit events")
			}
		}
	}
}

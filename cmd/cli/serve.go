package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/netsweep/internal/api"
	"github.com/anstrom/netsweep/internal/api/handlers"
	"github.com/anstrom/netsweep/internal/config"
	"github.com/anstrom/netsweep/internal/metrics"
	"github.com/anstrom/netsweep/internal/scheduler"
)

const (
	pruneSchedule         = "@every 10m"
	systemMetricsInterval = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long: `Run the netsweep HTTP API in the foreground together with the
configured sweep schedule. The server stops gracefully on SIGINT or SIGTERM.`,
	Example: `  netsweep serve
  netsweep serve --listen 0.0.0.0 --port 9090
  NETSWEEP_STORAGE_BACKEND=postgres netsweep serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "Override the API listen address")
	serveCmd.Flags().Int("port", 0, "Override the API port")
	_ = viper.BindPFlag("api.listen_addr", serveCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("api.port", serveCmd.Flags().Lookup("port"))
}

func runServe(_ *cobra.Command, _ []string) error {
	return withEngine(func(ctx context.Context, e *engine) error {
		handlers.SetBuildInfo(version, commit, buildTime)

		sched, err := newScheduler(e)
		if err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()

		m := metrics.GetGlobalMetrics()
		go m.StartPeriodicUpdates(ctx, systemMetricsInterval)

		server, err := api.New(e.cfg, api.Dependencies{
			Segments:    e.segments,
			Scans:       e.scans,
			Jobs:        e.tracker,
			Storage:     e.store,
			Detail:      e.scans,
			NmapVersion: e.nmapVersion,
			Metrics:     m,
		})
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}

		e.logger.Info("Starting netsweep",
			"version", version,
			"commit", commit,
			"address", e.cfg.GetAPIAddress(),
			"storage", e.cfg.Storage.Backend,
			"scheduled_sweeps", len(e.cfg.Schedule.Sweeps))

		if err := server.Start(ctx); err != nil {
			return err
		}
		e.logger.Info("netsweep stopped")
		return nil
	})
}

// newScheduler registers the configured sweeps and job pruning.
func newScheduler(e *engine) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(e.scans)

	for _, s := range e.cfg.Schedule.Sweeps {
		if _, err := sched.AddSweep(s.SegmentID, s.Cron); err != nil {
			return nil, fmt.Errorf("failed to schedule sweep of %s: %w", s.SegmentID, err)
		}
	}

	retention := e.cfg.Engine.JobRetention
	if retention <= 0 {
		retention = config.Default().Engine.JobRetention
	}
	if _, err := sched.AddMaintenance("prune-jobs", pruneSchedule, func() {
		if n := e.scans.PruneJobs(retention); n > 0 {
			e.logger.Debug("Pruned finished jobs", "count", n)
		}
	}); err != nil {
		return nil, err
	}
	return sched, nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anstrom/netsweep/internal/config"
	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/enrichment"
	"github.com/anstrom/netsweep/internal/jobs"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/scanning"
	"github.com/anstrom/netsweep/internal/services"
)

// engine is the scanning stack built from one configuration.
type engine struct {
	cfg      *config.Config
	store    db.Store
	tracker  *jobs.Tracker
	segments *services.SegmentService
	scans    *services.ScanService
	nmap     *scanning.NmapAvailability
	logger   *logging.Logger
}

// openStore opens the configured storage backend wrapped with metrics.
func openStore(ctx context.Context, cfg *config.Config) (db.Store, error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		store, err := db.Connect(ctx, &cfg.Storage.Database)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		return db.WithMetrics(store), nil
	default:
		store, err := db.NewFileStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open data directory: %w", err)
		}
		return db.WithMetrics(store), nil
	}
}

func newLivenessProber(cfg *config.Config) (scanning.LivenessProber, error) {
	if cfg.Engine.LivenessMethod == config.LivenessARP {
		p, err := scanning.NewARPProber(cfg.Engine.PingTimeout)
		if err != nil {
			return nil, fmt.Errorf("ARP liveness unavailable: %w", err)
		}
		return p, nil
	}
	return scanning.NewPingProber(cfg.Engine.PingTimeout), nil
}

// newEngine builds the store, the probers and the services.
func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	logger := logging.Default().WithComponent("cli")

	liveness, err := newLivenessProber(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	availability := &scanning.NmapAvailability{Binary: cfg.Engine.NmapBinary}
	enrichers := enrichment.New(enrichment.Options{
		ReverseDNS:    cfg.Enrichment.ReverseDNS,
		DNSServer:     cfg.Enrichment.DNSServer,
		SNMPCommunity: cfg.Enrichment.SNMPCommunity,
		OUIDatabase:   cfg.Enrichment.OUIDatabase,
		Timeout:       cfg.Enrichment.Timeout,
	})
	prober := scanning.NewDetailProber(
		scanning.NewNmapRunner(cfg.Engine.HostTimeout, cfg.Engine.NmapBinary),
		scanning.WithAvailability(availability),
		scanning.WithEnrichers(enrichers...),
	)

	tracker := jobs.NewTracker()
	scans, err := services.NewScanService(store, tracker,
		scanning.NewSweeper(liveness, cfg.Engine.SweepConcurrency), prober,
		services.ScanServiceConfig{
			MaxParallelJobs:   cfg.Engine.MaxParallelJobs,
			MaxSweepAddresses: cfg.Engine.MaxSweepAddresses,
		})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Debug("Engine ready",
		"storage", cfg.Storage.Backend,
		"liveness", cfg.Engine.LivenessMethod,
		"enrichers", len(enrichers))

	return &engine{
		cfg:      cfg,
		store:    store,
		tracker:  tracker,
		segments: services.NewSegmentService(store),
		scans:    scans,
		nmap:     availability,
		logger:   logger,
	}, nil
}

// nmapVersion reports the version line of the configured nmap.
func (e *engine) nmapVersion(ctx context.Context) string {
	e.nmap.Available(ctx)
	return e.nmap.Version()
}

// Close stops running jobs and closes the store.
func (e *engine) Close() {
	e.scans.Close()
	if err := e.store.Close(); err != nil {
		e.logger.Warn("Failed to close store", "error", err)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withEngine runs fn with a full engine and tears it down afterwards.
func withEngine(fn func(ctx context.Context, e *engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	e, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	return fn(ctx, e)
}

// withSegmentService runs fn against the configured store only.
func withSegmentService(fn func(ctx context.Context, svc *services.SegmentService) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", closeErr)
		}
	}()

	return fn(ctx, services.NewSegmentService(store))
}

// waitForJob blocks until the job under key is completed or failed.
func waitForJob(ctx context.Context, tracker *jobs.Tracker, key string, progress func(jobs.Job)) (jobs.Job, error) {
	updates, unsubscribe := tracker.Subscribe(key)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return tracker.Status(key), ctx.Err()
		case job, ok := <-updates:
			if !ok {
				return tracker.Status(key), nil
			}
			if progress != nil {
				progress(job)
			}
			if job.State.Terminal() {
				return job, nil
			}
		}
	}
}

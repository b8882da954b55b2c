package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/jobs"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
	"github.com/anstrom/netsweep/internal/scanning"
)

// MaxQuickCheckAddresses bounds one synchronous liveness check.
const MaxQuickCheckAddresses = 256

const (
	defaultMaxParallelJobs   = 8
	defaultMaxSweepAddresses = 65536
)

// Sweeper is the liveness sweep the service runs.
type Sweeper interface {
	SweepWithProgress(ctx context.Context, addrs []netip.Addr, progress scanning.ProgressFunc) []db.HostRecord
}

// HostProber is the detail probe the service runs.
type HostProber interface {
	Available(ctx context.Context) bool
	Probe(ctx context.Context, addr netip.Addr, ports scanning.PortRange) (*db.HostRecord, error)
}

// ScanServiceConfig sizes the job pool and bounds sweeps.
type ScanServiceConfig struct {
	MaxParallelJobs   int
	MaxSweepAddresses int
}

// SweepSummary is the result of a finished sweep job.
type SweepSummary struct {
	SegmentID string        `json:"segment_id,omitempty"`
	CIDR      string        `json:"cidr"`
	Total     int           `json:"total"`
	Active    int           `json:"active"`
	Inactive  int           `json:"inactive"`
	Duration  time.Duration `json:"duration_ns"`
}

// ScanService runs sweeps and detail probes as tracked background jobs.
// A key whose job is scanning cannot be started again until it finishes.
type ScanService struct {
	store   db.Store
	tracker *jobs.Tracker
	sweeper Sweeper
	prober  HostProber
	pool    *ants.Pool
	cfg     ScanServiceConfig

	// serializes read-modify-write of one segment's records
	segmentLocks sync.Map

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	logger  *logging.Logger
	metrics *metrics.PrometheusMetrics
}

// NewScanService creates a scan service with a pool of cfg.MaxParallelJobs
// workers.
func NewScanService(store db.Store, tracker *jobs.Tracker, sweeper Sweeper, prober HostProber,
	cfg ScanServiceConfig) (*ScanService, error) {
	if cfg.MaxParallelJobs <= 0 {
		cfg.MaxParallelJobs = defaultMaxParallelJobs
	}
	if cfg.MaxSweepAddresses <= 0 {
		cfg.MaxSweepAddresses = defaultMaxSweepAddresses
	}

	pool, err := ants.NewPool(cfg.MaxParallelJobs, ants.WithNonblocking(true))
	if err != nil {
		return nil, errors.WrapScanError(errors.CodeConfiguration, "failed to create job pool", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ScanService{
		store:   store,
		tracker: tracker,
		sweeper: sweeper,
		prober:  prober,
		pool:    pool,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logging.Default().WithComponent("scan-service"),
		metrics: metrics.GetGlobalMetrics(),
	}, nil
}

// Tracker returns the job tracker the service reports to.
func (s *ScanService) Tracker() *jobs.Tracker {
	return s.tracker
}

// DetailAvailable reports whether detail probes can run.
func (s *ScanService) DetailAvailable(ctx context.Context) bool {
	return s.prober.Available(ctx)
}

// Close cancels running jobs and waits for them to record their outcome.
func (s *ScanService) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.pool.Release()
	})
}

// JobStatus returns the job stored under key.
func (s *ScanService) JobStatus(key string) jobs.Job {
	return s.tracker.Status(key)
}

// Jobs returns every tracked job.
func (s *ScanService) Jobs() []jobs.Job {
	return s.tracker.List()
}

// PruneJobs forgets jobs that finished more than retention ago.
func (s *ScanService) PruneJobs(retention time.Duration) int {
	n := s.tracker.Prune(time.Now().UTC().Add(-retention))
	if n > 0 {
		s.logger.Debug("Pruned finished jobs", "count", n)
	}
	return n
}

func (s *ScanService) segmentLock(id string) *sync.Mutex {
	l, _ := s.segmentLocks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// launch starts key in the tracker and hands run to the pool. The job ends
// completed with run's result or error with run's error message.
func (s *ScanService) launch(key string, kind jobs.Kind, run func(ctx context.Context) (interface{}, error)) (jobs.Job, error) {
	job, ok := s.tracker.TryStart(key, kind)
	if !ok {
		return job, errors.ErrConflict("scan already in progress", key)
	}

	log := s.logger.WithJob(key)
	s.wg.Add(1)
	err := s.pool.Submit(func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("Job panicked", "panic", r)
				_ = s.tracker.Fail(key, fmt.Sprintf("internal error: %v", r))
			}
		}()

		result, err := run(s.ctx)
		if err != nil {
			log.Warn("Job failed", "kind", kind, "error", err)
			_ = s.tracker.Fail(key, err.Error())
			return
		}
		_ = s.tracker.Complete(key, result)
	})
	if err != nil {
		s.wg.Done()
		_ = s.tracker.Fail(key, "job queue is full")
		if stderrors.Is(err, ants.ErrPoolOverload) {
			return s.tracker.Status(key), errors.NewScanErrorWithTarget(errors.CodeRateLimited,
				"too many scans running, retry later", key)
		}
		return s.tracker.Status(key), errors.WrapScanErrorWithTarget(errors.CodeUnknown,
			"failed to schedule scan", key, err)
	}
	return job, nil
}

// enumerate expands cidr and enforces the sweep size limit.
func (s *ScanService) enumerate(cidr string) ([]netip.Addr, error) {
	prefix, err := scanning.NormalizeCIDR(cidr)
	if err != nil {
		return nil, err
	}
	if n := scanning.AddressCount(prefix); n > s.cfg.MaxSweepAddresses {
		return nil, errors.NewScanErrorWithTarget(errors.CodeValidation,
			fmt.Sprintf("network has %d addresses, limit is %d", n, s.cfg.MaxSweepAddresses),
			prefix.String())
	}
	return scanning.EnumerateHosts(prefix.String())
}

// SweepNetwork sweeps cidr without storing anything.
func (s *ScanService) SweepNetwork(ctx context.Context, cidr string, progress scanning.ProgressFunc) ([]db.HostRecord, error) {
	addrs, err := s.enumerate(cidr)
	if err != nil {
		return nil, err
	}
	return s.sweeper.SweepWithProgress(ctx, addrs, progress), nil
}

// Sweep sweeps a stored segment and saves the result. Detail fields from
// the previous records of the same address are carried over.
func (s *ScanService) Sweep(ctx context.Context, segmentID string, progress scanning.ProgressFunc) (*SweepSummary, error) {
	segment, err := s.store.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	addrs, err := s.enumerate(segment.CIDR)
	if err != nil {
		return nil, err
	}
	return s.sweepSegment(ctx, segment, addrs, progress)
}

func (s *ScanService) sweepSegment(ctx context.Context, segment *db.NetworkSegment, addrs []netip.Addr,
	progress scanning.ProgressFunc) (*SweepSummary, error) {
	start := time.Now()
	s.logger.InfoSweep("Sweep started", segment.CIDR, "segment_id", segment.ID, "addresses", len(addrs))

	records := s.sweeper.SweepWithProgress(ctx, addrs, progress)
	if err := ctx.Err(); err != nil {
		s.metrics.RecordSweep(metrics.ResultError, time.Since(start), 0, 0)
		return nil, errors.WrapScanErrorWithTarget(errors.CodeCanceled, "sweep canceled", segment.CIDR, err)
	}

	if err := s.mergeAndSave(ctx, segment.ID, records); err != nil {
		s.metrics.RecordSweep(metrics.ResultError, time.Since(start), 0, 0)
		s.logger.ErrorSweep("Failed to store sweep result", segment.CIDR, err)
		return nil, err
	}

	active := db.CountActive(records)
	summary := &SweepSummary{
		SegmentID: segment.ID,
		CIDR:      segment.CIDR,
		Total:     len(records),
		Active:    active,
		Inactive:  len(records) - active,
		Duration:  time.Since(start),
	}
	s.metrics.RecordSweep(metrics.ResultSuccess, summary.Duration, summary.Active, summary.Inactive)
	s.logger.InfoSweep("Sweep completed", segment.CIDR,
		"segment_id", segment.ID, "active", summary.Active, "total", summary.Total,
		"duration", summary.Duration)
	return summary, nil
}

func (s *ScanService) mergeAndSave(ctx context.Context, segmentID string, records []db.HostRecord) error {
	l := s.segmentLock(segmentID)
	l.Lock()
	defer l.Unlock()

	previous, err := s.store.LoadHostRecords(ctx, segmentID)
	if err != nil {
		return err
	}
	byIP := make(map[string]db.HostRecord, len(previous))
	for _, rec := range previous {
		byIP[rec.IP] = rec
	}
	for i := range records {
		if prev, ok := byIP[records[i].IP]; ok {
			records[i].MergeDetails(prev)
		}
	}
	return s.store.SaveHostRecords(ctx, segmentID, records)
}

// StartSweep sweeps a stored segment in the background. The job key is the
// segment id.
func (s *ScanService) StartSweep(ctx context.Context, segmentID string) (jobs.Job, error) {
	segment, err := s.store.GetSegment(ctx, segmentID)
	if err != nil {
		return jobs.Job{}, err
	}
	addrs, err := s.enumerate(segment.CIDR)
	if err != nil {
		return jobs.Job{}, err
	}

	key := jobs.SegmentKey(segment.ID)
	return s.launch(key, jobs.KindSweep, func(ctx context.Context) (interface{}, error) {
		return s.sweepSegment(ctx, segment, addrs, func(done, total int) {
			s.tracker.Progress(key, done, total)
		})
	})
}

func parseTarget(addr string) (netip.Addr, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil || !ip.Is4() {
		return netip.Addr{}, errors.NewScanErrorWithTarget(errors.CodeValidation,
			"address must be an IPv4 address", addr)
	}
	return ip, nil
}

// ProbeHost detail-probes addr, which must lie inside the segment, and
// stores the record in place of the segment's previous record for addr.
func (s *ScanService) ProbeHost(ctx context.Context, segmentID, addr string, ports scanning.PortRange) (*db.HostRecord, error) {
	segment, ip, err := s.resolveHost(ctx, segmentID, addr, ports)
	if err != nil {
		return nil, err
	}
	return s.probeAndStore(ctx, segment, ip, ports)
}

func (s *ScanService) resolveHost(ctx context.Context, segmentID, addr string,
	ports scanning.PortRange) (*db.NetworkSegment, netip.Addr, error) {
	ip, err := parseTarget(addr)
	if err != nil {
		return nil, ip, err
	}
	if err := ports.Validate(); err != nil {
		return nil, ip, err
	}
	segment, err := s.store.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, ip, err
	}
	prefix, err := netip.ParsePrefix(segment.CIDR)
	if err != nil {
		return nil, ip, errors.ErrInvalidCIDR(segment.CIDR, err)
	}
	if !prefix.Contains(ip) {
		return nil, ip, errors.NewScanErrorWithTarget(errors.CodeValidation,
			"address is outside segment "+segment.CIDR, addr)
	}
	return segment, ip, nil
}

// failUnavailable records an error job under key when nmap is missing, so
// the attempt shows up in job status with the remediation message.
func (s *ScanService) failUnavailable(key string, kind jobs.Kind, addr string) (jobs.Job, error) {
	unavailable := errors.ErrDetailScanUnavailable(addr)
	job, ok := s.tracker.TryStart(key, kind)
	if !ok {
		return job, errors.ErrConflict("scan already in progress", key)
	}
	_ = s.tracker.Fail(key, unavailable.Error())
	s.logger.WithJob(key).Warn("Detail scan unavailable", "target", addr)
	return s.tracker.Status(key), unavailable
}

func (s *ScanService) probeAndStore(ctx context.Context, segment *db.NetworkSegment, ip netip.Addr,
	ports scanning.PortRange) (*db.HostRecord, error) {
	rec, err := s.prober.Probe(ctx, ip, ports)
	if err != nil {
		return nil, err
	}

	l := s.segmentLock(segment.ID)
	l.Lock()
	defer l.Unlock()

	records, err := s.store.LoadHostRecords(ctx, segment.ID)
	if err != nil {
		return nil, err
	}
	replaced := false
	for i := range records {
		if records[i].IP == rec.IP {
			records[i] = *rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, *rec)
	}
	if err := s.store.SaveHostRecords(ctx, segment.ID, records); err != nil {
		return nil, err
	}

	s.logger.InfoProbe("Host probed", rec.IP, "segment_id", segment.ID,
		"active", rec.IsActive, "open_ports", len(rec.OpenPorts))
	return rec, nil
}

// StartHostProbe runs ProbeHost in the background under the key
// segment:addr. Bad input is rejected before a job is created; a missing
// nmap leaves an error job and returns DETAIL_SCAN_UNAVAILABLE.
func (s *ScanService) StartHostProbe(ctx context.Context, segmentID, addr string, ports scanning.PortRange) (jobs.Job, error) {
	segment, ip, err := s.resolveHost(ctx, segmentID, addr, ports)
	if err != nil {
		return jobs.Job{}, err
	}
	key := jobs.HostKey(segment.ID, ip.String())
	if !s.prober.Available(ctx) {
		return s.failUnavailable(key, jobs.KindProbe, ip.String())
	}
	return s.launch(key, jobs.KindProbe, func(ctx context.Context) (interface{}, error) {
		return s.probeAndStore(ctx, segment, ip, ports)
	})
}

// StartAdhocProbe detail-probes an address outside any segment. The result
// lives only in the job, keyed by a fresh token.
func (s *ScanService) StartAdhocProbe(ctx context.Context, addr string, ports scanning.PortRange) (jobs.Job, error) {
	ip, err := parseTarget(addr)
	if err != nil {
		return jobs.Job{}, err
	}
	if err := ports.Validate(); err != nil {
		return jobs.Job{}, err
	}
	if !s.prober.Available(ctx) {
		return s.failUnavailable(jobs.NewToken(), jobs.KindAdhoc, ip.String())
	}
	return s.launch(jobs.NewToken(), jobs.KindAdhoc, func(ctx context.Context) (interface{}, error) {
		return s.prober.Probe(ctx, ip, ports)
	})
}

// QuickCheck reports liveness of each address in addrs, in order.
func (s *ScanService) QuickCheck(ctx context.Context, addrs []string) ([]db.HostRecord, error) {
	if len(addrs) == 0 {
		return nil, errors.ErrValidation("no addresses given")
	}
	if len(addrs) > MaxQuickCheckAddresses {
		return nil, errors.ErrValidation(fmt.Sprintf("at most %d addresses per check", MaxQuickCheckAddresses))
	}

	targets := make([]netip.Addr, len(addrs))
	for i, a := range addrs {
		ip, err := parseTarget(a)
		if err != nil {
			return nil, err
		}
		targets[i] = ip
	}
	return s.sweeper.SweepWithProgress(ctx, targets, nil), nil
}

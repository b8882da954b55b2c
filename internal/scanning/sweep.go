package scanning

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
)

// DefaultSweepConcurrency caps in-flight liveness probes per sweep.
const DefaultSweepConcurrency = 50

// ProgressFunc receives the number of finished addresses after each one.
// Calls are serialized and done never decreases.
type ProgressFunc func(done, total int)

// Sweeper probes many addresses with a bounded number of concurrent probes.
type Sweeper struct {
	prober      LivenessProber
	concurrency int
	logger      *logging.Logger
	metrics     *metrics.PrometheusMetrics
}

// NewSweeper creates a sweeper. A non-positive concurrency uses
// DefaultSweepConcurrency.
func NewSweeper(prober LivenessProber, concurrency int) *Sweeper {
	if concurrency <= 0 {
		concurrency = DefaultSweepConcurrency
	}
	return &Sweeper{
		prober:      prober,
		concurrency: concurrency,
		logger:      logging.Default().WithComponent("sweep"),
		metrics:     metrics.GetGlobalMetrics(),
	}
}

// Concurrency returns the probe cap.
func (s *Sweeper) Concurrency() int {
	return s.concurrency
}

// Sweep probes every address and returns one record per address, in input
// order.
func (s *Sweeper) Sweep(ctx context.Context, addrs []netip.Addr) []db.HostRecord {
	return s.SweepWithProgress(ctx, addrs, nil)
}

// SweepWithProgress is Sweep with a progress callback. Once ctx is done the
// addresses not yet started are recorded inactive without probing.
func (s *Sweeper) SweepWithProgress(ctx context.Context, addrs []netip.Addr, progress ProgressFunc) []db.HostRecord {
	total := len(addrs)
	records := make([]db.HostRecord, total)
	method := proberMethod(s.prober)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		done   int
		active int
	)
	finish := func(i int, rec db.HostRecord) {
		mu.Lock()
		defer mu.Unlock()
		records[i] = rec
		done++
		if rec.IsActive {
			active++
		}
		if progress != nil {
			progress(done, total)
		}
	}

	sem := semaphore.NewWeighted(int64(s.concurrency))
	for i, addr := range addrs {
		if err := sem.Acquire(ctx, 1); err != nil {
			s.logger.Warn("Sweep interrupted, marking remaining addresses inactive",
				"remaining", total-i, "error", err)
			now := time.Now().UTC()
			for j := i; j < total; j++ {
				finish(j, newHostRecord(addrs[j], false, now))
			}
			break
		}

		wg.Add(1)
		go func(i int, addr netip.Addr) {
			defer wg.Done()
			defer sem.Release(1)

			s.metrics.ProbeStarted()
			alive := s.prober.Probe(ctx, addr)
			s.metrics.ProbeFinished()
			s.metrics.IncrementProbes(method, alive)

			finish(i, newHostRecord(addr, alive, time.Now().UTC()))
		}(i, addr)
	}
	wg.Wait()

	s.logger.Debug("Sweep finished", "addresses", total, "active", active, "method", method)
	return records
}

func newHostRecord(addr netip.Addr, alive bool, checked time.Time) db.HostRecord {
	return db.HostRecord{
		IP:          addr.String(),
		IsActive:    alive,
		LastChecked: checked,
		OpenPorts:   db.PortList{},
		Services:    db.ServiceMap{},
	}
}

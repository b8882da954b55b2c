// Package scheduler runs recurring segment sweeps on cron expressions.
// Each firing starts a sweep job through the scan service; a firing that
// finds the previous sweep of the segment still running is skipped.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/jobs"
	"github.com/anstrom/netsweep/internal/logging"
)

// SweepStarter starts a background sweep of a stored segment.
type SweepStarter interface {
	StartSweep(ctx context.Context, segmentID string) (jobs.Job, error)
}

// Scheduler manages scheduled sweeps.
type Scheduler struct {
	cron    *cron.Cron
	starter SweepStarter
	jobs    map[uuid.UUID]*ScheduledJob
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *logging.Logger
}

// ScheduledJob is one cron entry.
type ScheduledJob struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	SegmentID      string       `json:"segment_id,omitempty"`
	CronExpression string       `json:"cron"`
	CronID         cron.EntryID `json:"-"`
	LastRun        *time.Time   `json:"last_run,omitempty"`
	LastError      string       `json:"last_error,omitempty"`
	NextRun        *time.Time   `json:"next_run,omitempty"`
	Runs           int          `json:"runs"`
	Skipped        int          `json:"skipped"`
}

// cronLogger adapts the netsweep logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(starter SweepStarter) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	logger := logging.Default().WithComponent("scheduler")
	cl := cronLogger{logger: logger}

	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		starter: starter,
		jobs:    make(map[uuid.UUID]*ScheduledJob),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// Start begins firing entries.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop stops firing entries and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) add(job *ScheduledJob, run func(id uuid.UUID)) (uuid.UUID, error) {
	if _, err := cron.ParseStandard(job.CronExpression); err != nil {
		return uuid.Nil, errors.WrapScanError(errors.CodeValidation,
			fmt.Sprintf("invalid cron expression %q", job.CronExpression), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job.ID = uuid.New()
	id := job.ID
	cronID, err := s.cron.AddFunc(job.CronExpression, func() { run(id) })
	if err != nil {
		return uuid.Nil, errors.WrapScanError(errors.CodeValidation, "failed to add cron job", err)
	}
	job.CronID = cronID
	s.jobs[id] = job

	s.logger.Info("Added scheduled job", "name", job.Name, "cron", job.CronExpression)
	return id, nil
}

// AddSweep schedules sweeps of segmentID on cronExpr (standard five
// fields or a descriptor such as @hourly).
func (s *Scheduler) AddSweep(segmentID, cronExpr string) (uuid.UUID, error) {
	if segmentID == "" {
		return uuid.Nil, errors.ErrValidation("segment id is required")
	}
	return s.add(&ScheduledJob{
		Name:           "sweep " + segmentID,
		SegmentID:      segmentID,
		CronExpression: cronExpr,
	}, s.executeSweep)
}

// AddMaintenance schedules fn under name, for housekeeping such as
// pruning finished jobs.
func (s *Scheduler) AddMaintenance(name, cronExpr string, fn func()) (uuid.UUID, error) {
	return s.add(&ScheduledJob{Name: name, CronExpression: cronExpr}, func(id uuid.UUID) {
		if !s.prepare(id) {
			return
		}
		fn()
		s.finish(id, "", false)
	})
}

// RemoveJob removes a scheduled job.
func (s *Scheduler) RemoveJob(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return errors.ErrNotFound("scheduled job", id.String())
	}
	s.cron.Remove(job.CronID)
	delete(s.jobs, id)

	s.logger.Info("Removed scheduled job", "name", job.Name)
	return nil
}

// GetJobs returns copies of all entries ordered by name, with the next
// firing time filled in while the scheduler runs.
func (s *Scheduler) GetJobs() []ScheduledJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ScheduledJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		c := *j
		if next := s.cron.Entry(j.CronID).Next; !next.IsZero() {
			c.NextRun = &next
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// prepare reports whether id still exists.
func (s *Scheduler) prepare(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.jobs[id]
	return ok
}

func (s *Scheduler) finish(id uuid.UUID, errMsg string, skipped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	job.LastRun = &now
	job.LastError = errMsg
	if skipped {
		job.Skipped++
	} else {
		job.Runs++
	}
}

func (s *Scheduler) executeSweep(id uuid.UUID) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	var segmentID string
	if ok {
		segmentID = job.SegmentID
	}
	s.mu.RUnlock()
	if !ok {
		return
	}

	_, err := s.starter.StartSweep(s.ctx, segmentID)
	switch {
	case err == nil:
		s.logger.Debug("Scheduled sweep started", "segment_id", segmentID)
		s.finish(id, "", false)
	case errors.IsCode(err, errors.CodeConflict):
		s.logger.Info("Previous sweep still running, skipping", "segment_id", segmentID)
		s.finish(id, "", true)
	default:
		s.logger.Warn("Scheduled sweep failed to start", "segment_id", segmentID, "error", err)
		s.finish(id, err.Error(), false)
	}
}

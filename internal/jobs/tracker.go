// Package jobs tracks asynchronous scan jobs in memory so callers can poll or
// stream the state of a sweep or detail probe without waiting on it.
package jobs

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/metrics"
)

// State is the lifecycle position of a job.
type State string

const (
	StateNotStarted State = "not_started"
	StateScanning   State = "scanning"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Terminal reports whether s is completed or error.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// Kind labels what a job does.
type Kind string

const (
	KindSweep Kind = "sweep"
	KindProbe Kind = "probe"
	KindAdhoc Kind = "adhoc"
)

const (
	subscriberBuffer = 16
	lockStripes      = 64
)

// Job is a snapshot of one scan job.
type Job struct {
	Key        string      `json:"key"`
	Kind       Kind        `json:"kind,omitempty"`
	State      State       `json:"status"`
	Progress   int         `json:"progress"`
	Done       int         `json:"done"`
	Total      int         `json:"total"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// SegmentKey is the job key of a segment sweep.
func SegmentKey(segmentID string) string {
	return segmentID
}

// HostKey is the job key of a detail probe of one address in a segment.
func HostKey(segmentID, addr string) string {
	return segmentID + ":" + addr
}

// NewToken returns a fresh key for an ad-hoc job.
func NewToken() string {
	return uuid.NewString()
}

// Tracker holds job state. Transitions of one key are serialized by a
// striped set of mutexes, so unrelated keys rarely contend.
type Tracker struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	locks [lockStripes]sync.Mutex
	subs  map[string]map[chan Job]struct{}

	now     func() time.Time
	metrics *metrics.PrometheusMetrics
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		jobs:    make(map[string]*Job),
		subs:    make(map[string]map[chan Job]struct{}),
		now:     func() time.Time { return time.Now().UTC() },
		metrics: metrics.GetGlobalMetrics(),
	}
}

func (t *Tracker) keyLock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &t.locks[h.Sum32()%lockStripes]
}

// current returns a copy of the job, or a not_started snapshot.
func (t *Tracker) current(key string) Job {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if j, ok := t.jobs[key]; ok {
		return *j
	}
	return Job{Key: key, State: StateNotStarted}
}

// store saves job and notifies subscribers.
func (t *Tracker) store(job Job, from State) {
	t.mu.Lock()
	stored := job
	t.jobs[job.Key] = &stored
	for ch := range t.subs[job.Key] {
		deliver(ch, job)
	}
	t.mu.Unlock()

	if from != job.State {
		t.metrics.RecordJobTransition(string(job.Kind), string(from), string(job.State))
	}
}

// deliver never blocks; a slow subscriber loses its oldest update.
func deliver(ch chan Job, job Job) {
	for {
		select {
		case ch <- job:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (t *Tracker) start(key string, kind Kind, prev Job) Job {
	now := t.now()
	job := Job{Key: key, Kind: kind, State: StateScanning, StartedAt: &now}
	t.store(job, prev.State)
	return job
}

// Start puts key into scanning with zero progress, replacing any previous
// record including a running one.
func (t *Tracker) Start(key string, kind Kind) Job {
	l := t.keyLock(key)
	l.Lock()
	defer l.Unlock()
	return t.start(key, kind, t.current(key))
}

// TryStart is Start unless key is already scanning, in which case it returns
// the running job and false.
func (t *Tracker) TryStart(key string, kind Kind) (Job, bool) {
	l := t.keyLock(key)
	l.Lock()
	defer l.Unlock()

	prev := t.current(key)
	if prev.State == StateScanning {
		return prev, false
	}
	return t.start(key, kind, prev), true
}

func (t *Tracker) finish(key string, state State, result interface{}, msg string) error {
	l := t.keyLock(key)
	l.Lock()
	defer l.Unlock()

	job := t.current(key)
	if job.State != StateScanning {
		return errors.NewScanErrorWithTarget(errors.CodeConflict,
			"job is not running", key).WithContext("state", string(job.State))
	}

	now := t.now()
	prev := job.State
	job.State = state
	job.Result = result
	job.Error = msg
	job.FinishedAt = &now
	if state == StateCompleted {
		job.Progress = 100
		if job.Total > 0 {
			job.Done = job.Total
		}
	}
	t.store(job, prev)
	return nil
}

// Complete moves a running job to completed with result.
func (t *Tracker) Complete(key string, result interface{}) error {
	return t.finish(key, StateCompleted, result, "")
}

// Fail moves a running job to error with msg.
func (t *Tracker) Fail(key string, msg string) error {
	return t.finish(key, StateError, nil, msg)
}

// Progress records done of total for a running job. Updates for jobs that
// are not scanning are ignored.
func (t *Tracker) Progress(key string, done, total int) {
	l := t.keyLock(key)
	l.Lock()
	defer l.Unlock()

	job := t.current(key)
	if job.State != StateScanning || total <= 0 {
		return
	}
	job.Done = done
	job.Total = total
	job.Progress = done * 100 / total
	t.store(job, job.State)
}

// Status returns a snapshot of key, not_started if unknown.
func (t *Tracker) Status(key string) Job {
	return t.current(key)
}

// List returns snapshots of all jobs ordered by key.
func (t *Tracker) List() []Job {
	t.mu.RLock()
	out := make([]Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, *j)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Subscribe returns a channel that first receives the current snapshot of
// key and then every change. The returned func unsubscribes and closes the
// channel.
func (t *Tracker) Subscribe(key string) (<-chan Job, func()) {
	ch := make(chan Job, subscriberBuffer)

	t.mu.Lock()
	if t.subs[key] == nil {
		t.subs[key] = make(map[chan Job]struct{})
	}
	t.subs[key][ch] = struct{}{}
	snapshot := Job{Key: key, State: StateNotStarted}
	if j, ok := t.jobs[key]; ok {
		snapshot = *j
	}
	deliver(ch, snapshot)
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs[key], ch)
			if len(t.subs[key]) == 0 {
				delete(t.subs, key)
			}
			close(ch)
		})
	}
}

// Prune drops finished jobs that ended before cutoff and returns how many
// were removed.
func (t *Tracker) Prune(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, j := range t.jobs {
		if j.State.Terminal() && j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			delete(t.jobs, key)
			removed++
		}
	}
	return removed
}

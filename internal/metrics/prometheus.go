// Package metrics provides Prometheus-based metrics collection for netsweep.
// A single registry holds the sweep, probe, detail scan, job, storage and
// HTTP collectors plus the Go and process collectors.
package metrics

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all netsweep metrics
	namespace = "netsweep"

	// Subsystems
	subsystemSweep   = "sweep"
	subsystemProbe   = "probe"
	subsystemDetail  = "detail"
	subsystemJobs    = "jobs"
	subsystemStorage = "storage"
	subsystemSystem  = "system"
	subsystemAPI     = "api"
)

// Result label values shared by the collectors.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultActive   = "active"
	ResultInactive = "inactive"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Sweep metrics
	sweepsTotal   *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	hostsSwept    *prometheus.CounterVec

	// Liveness probe metrics
	probesTotal  *prometheus.CounterVec
	activeProbes prometheus.Gauge

	// Detail scan metrics
	detailScans    *prometheus.CounterVec
	detailDuration *prometheus.HistogramVec

	// Job metrics
	jobTransitions *prometheus.CounterVec
	runningJobs    prometheus.Gauge

	// Storage metrics
	storageOps      *prometheus.CounterVec
	storageDuration *prometheus.HistogramVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// System metrics
	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
	uptime      prometheus.Gauge

	startTime  time.Time
	lastUpdate time.Time
	mu         sync.RWMutex
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initSweepMetrics()
	pm.initDetailMetrics()
	pm.initJobMetrics()
	pm.initStorageMetrics()
	pm.initAPIMetrics()
	pm.initSystemMetrics()

	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initSweepMetrics() {
	pm.sweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSweep,
			Name:      "total",
			Help:      "Total number of liveness sweeps by status",
		},
		[]string{"status"},
	)

	pm.sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemSweep,
			Name:      "duration_seconds",
			Help:      "Duration of liveness sweeps in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	pm.hostsSwept = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSweep,
			Name:      "hosts_total",
			Help:      "Addresses swept by liveness result",
		},
		[]string{"result"},
	)

	pm.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "total",
			Help:      "Liveness probes by method and result",
		},
		[]string{"method", "result"},
	)

	pm.activeProbes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "in_flight",
			Help:      "Liveness probes currently running",
		},
	)
}

func (pm *PrometheusMetrics) initDetailMetrics() {
	pm.detailScans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDetail,
			Name:      "scans_total",
			Help:      "Host detail scans by privilege tier and result",
		},
		[]string{"tier", "result"},
	)

	pm.detailDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemDetail,
			Name:      "duration_seconds",
			Help:      "Duration of host detail scan tiers in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 300},
		},
		[]string{"tier"},
	)
}

func (pm *PrometheusMetrics) initJobMetrics() {
	pm.jobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemJobs,
			Name:      "transitions_total",
			Help:      "Scan job state transitions by kind and new state",
		},
		[]string{"kind", "state"},
	)

	pm.runningJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemJobs,
			Name:      "running",
			Help:      "Scan jobs currently in the scanning state",
		},
	)
}

func (pm *PrometheusMetrics) initStorageMetrics() {
	pm.storageOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemStorage,
			Name:      "operations_total",
			Help:      "Store operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	pm.storageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemStorage,
			Name:      "operation_duration_seconds",
			Help:      "Duration of store operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation"},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "path"},
	)
}

func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "memory_bytes",
			Help:      "Current memory usage in bytes",
		},
	)

	pm.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	pm.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		},
	)
}

func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.sweepsTotal,
		pm.sweepDuration,
		pm.hostsSwept,
		pm.probesTotal,
		pm.activeProbes,
		pm.detailScans,
		pm.detailDuration,
		pm.jobTransitions,
		pm.runningJobs,
		pm.storageOps,
		pm.storageDuration,
		pm.httpRequests,
		pm.httpDuration,
		pm.memoryUsage,
		pm.goroutines,
		pm.uptime,
	)
}

// GetRegistry returns the Prometheus registry for HTTP handler
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.GetRegistry(), promhttp.HandlerOpts{})
}

// RecordSweep records a finished sweep and its per-address outcome.
func (pm *PrometheusMetrics) RecordSweep(status string, duration time.Duration, active, inactive int) {
	pm.sweepsTotal.WithLabelValues(status).Inc()
	pm.sweepDuration.Observe(duration.Seconds())
	pm.hostsSwept.WithLabelValues(ResultActive).Add(float64(active))
	pm.hostsSwept.WithLabelValues(ResultInactive).Add(float64(inactive))
}

// IncrementProbes counts one liveness probe.
func (pm *PrometheusMetrics) IncrementProbes(method string, alive bool) {
	result := ResultInactive
	if alive {
		result = ResultActive
	}
	pm.probesTotal.WithLabelValues(method, result).Inc()
}

// ProbeStarted and ProbeFinished track in-flight liveness probes.
func (pm *PrometheusMetrics) ProbeStarted() {
	pm.activeProbes.Inc()
}

func (pm *PrometheusMetrics) ProbeFinished() {
	pm.activeProbes.Dec()
}

// RecordDetailScan records one detail scan tier attempt.
func (pm *PrometheusMetrics) RecordDetailScan(tier, result string, duration time.Duration) {
	pm.detailScans.WithLabelValues(tier, result).Inc()
	pm.detailDuration.WithLabelValues(tier).Observe(duration.Seconds())
}

// RecordJobTransition counts a job state change and keeps the running gauge.
func (pm *PrometheusMetrics) RecordJobTransition(kind, from, to string) {
	pm.jobTransitions.WithLabelValues(kind, to).Inc()
	const scanning = "scanning"
	if from == scanning && to != scanning {
		pm.runningJobs.Dec()
	}
	if to == scanning && from != scanning {
		pm.runningJobs.Inc()
	}
}

// RecordStorageOperation records one store call.
func (pm *PrometheusMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	status := ResultSuccess
	if err != nil {
		status = ResultError
	}
	pm.storageOps.WithLabelValues(operation, status).Inc()
	pm.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncrementHTTPRequests increments HTTP request counter
func (pm *PrometheusMetrics) IncrementHTTPRequests(method, path, status string) {
	pm.httpRequests.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPDuration records HTTP request duration
func (pm *PrometheusMetrics) RecordHTTPDuration(method, path string, duration time.Duration) {
	pm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateSystemMetrics updates all system metrics with current values
func (pm *PrometheusMetrics) UpdateSystemMetrics() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	pm.memoryUsage.Set(float64(memStats.Alloc))
	pm.goroutines.Set(float64(runtime.NumGoroutine()))
	pm.uptime.Set(time.Since(pm.startTime).Seconds())
	pm.lastUpdate = time.Now()
}

// GetUptime returns the application uptime
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// GetLastUpdate returns the last metrics update time
func (pm *PrometheusMetrics) GetLastUpdate() time.Time {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lastUpdate
}

// StartPeriodicUpdates refreshes the system gauges until ctx is done.
func (pm *PrometheusMetrics) StartPeriodicUpdates(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pm.UpdateSystemMetrics()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.UpdateSystemMetrics()
		}
	}
}

var (
	globalMetrics *PrometheusMetrics
	metricsOnce   sync.Once
)

// GetGlobalMetrics returns the global Prometheus metrics instance
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}

package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/services"
)

// StoragePinger checks that the storage backend answers.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// DetailChecker reports whether detail probes can run on this host.
type DetailChecker interface {
	DetailAvailable(ctx context.Context) bool
}

// ProcessMetrics reports process uptime and when the system gauges were
// last refreshed.
type ProcessMetrics interface {
	GetUptime() time.Duration
	GetLastUpdate() time.Time
}

const (
	healthCheckTimeout = 5 * time.Second
	capabilityTimeout  = 10 * time.Second
)

// Status constants.
const (
	StatusHealthy       = "healthy"
	StatusUnhealthy     = "unhealthy"
	StatusNotConfigured = "not configured"
)

// HealthHandler serves health, version and capability endpoints.
type HealthHandler struct {
	base
	storage     StoragePinger
	detail      DetailChecker
	nmapVersion func(ctx context.Context) string
	process     ProcessMetrics
	startTime   time.Time
}

// NewHealthHandler creates a health handler. nmapVersion may be nil when
// the version of the detail probe tool should not be reported.
func NewHealthHandler(storage StoragePinger, detail DetailChecker, nmapVersion func(ctx context.Context) string,
	logger *logging.Logger) *HealthHandler {
	return &HealthHandler{
		base:        newBase(logger, "health", 0),
		storage:     storage,
		detail:      detail,
		nmapVersion: nmapVersion,
		startTime:   time.Now(),
	}
}

// WithProcessMetrics makes Health report uptime and the last gauge refresh
// from m.
func (h *HealthHandler) WithProcessMetrics(m ProcessMetrics) *HealthHandler {
	h.process = m
	return h
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
	// MetricsUpdatedAt is the last refresh of the system gauges.
	MetricsUpdatedAt *time.Time `json:"metrics_updated_at,omitempty"`
}

// VersionResponse represents version information.
type VersionResponse struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	BuildTime string    `json:"build_time"`
	GoVersion string    `json:"go_version"`
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
}

// CapabilitiesResponse tells clients which scans this server can run.
type CapabilitiesResponse struct {
	LivenessSweep   bool   `json:"liveness_sweep"`
	DetailScan      bool   `json:"detail_scan"`
	DetailTool      string `json:"detail_tool,omitempty"`
	Privileged      bool   `json:"privileged"`
	Remediation     string `json:"remediation,omitempty"`
	MaxQuickCheck   int    `json:"max_quick_check"`
	DefaultPorts    string `json:"default_ports,omitempty"`
	OperatingSystem string `json:"os"`
}

// Health checks that the storage backend answers.
//
//	@Summary	Health check
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]string),
	}
	if h.process != nil {
		response.Uptime = h.process.GetUptime().Round(time.Second).String()
		if last := h.process.GetLastUpdate(); !last.IsZero() {
			last = last.UTC()
			response.MetricsUpdatedAt = &last
		}
	}

	if h.storage != nil {
		if err := h.storage.Ping(ctx); err != nil {
			response.Status = StatusUnhealthy
			response.Checks["storage"] = "failed: " + err.Error()
			h.logger.Warn("Storage health check failed", "error", err)
		} else {
			response.Checks["storage"] = "ok"
		}
	} else {
		response.Checks["storage"] = StatusNotConfigured
	}

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	h.writeJSON(w, r, statusCode, response)
}

// Version reports build information.
//
//	@Summary	Build information
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	VersionResponse
//	@Router		/version [get]
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, VersionResponse{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		PID:       os.Getpid(),
		Timestamp: time.Now().UTC(),
	})
}

// Capabilities reports whether detail scans are possible and, if not,
// what to install.
//
//	@Summary	Scan capabilities
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	CapabilitiesResponse
//	@Router		/capabilities [get]
func (h *HealthHandler) Capabilities(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), capabilityTimeout)
	defer cancel()

	resp := CapabilitiesResponse{
		LivenessSweep:   true,
		Privileged:      os.Geteuid() == 0,
		MaxQuickCheck:   services.MaxQuickCheckAddresses,
		DefaultPorts:    defaultPorts,
		OperatingSystem: runtime.GOOS,
	}
	if h.detail != nil && h.detail.DetailAvailable(ctx) {
		resp.DetailScan = true
		if h.nmapVersion != nil {
			resp.DetailTool = h.nmapVersion(ctx)
		}
	} else {
		resp.Remediation = "install nmap and make sure it is on PATH to enable host detail scans"
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

var (
	version      = "dev"
	commit       = "unknown"
	buildTime    = "unknown"
	defaultPorts = ""
)

// SetBuildInfo sets the build information reported by Version.
func SetBuildInfo(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
}

// SetDefaultPorts sets the port range Capabilities reports as default.
func SetDefaultPorts(ports string) {
	defaultPorts = ports
}

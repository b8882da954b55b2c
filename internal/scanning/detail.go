package scanning

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/netip"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
)

const (
	// DefaultHostTimeout bounds one nmap run against one host.
	DefaultHostTimeout = 180 * time.Second

	// OSUnknownPrivileged is recorded when only the unprivileged tier ran.
	OSUnknownPrivileged = "unknown — elevated privilege required"

	maxPort          = 65535
	versionCheckWait = 10 * time.Second
)

// Tier selects the nmap feature set.
type Tier string

const (
	// TierFull adds OS fingerprinting, which needs root.
	TierFull Tier = "full"
	// TierBasic is port and service detection only.
	TierBasic Tier = "basic"
)

// PortRange is an inclusive TCP port range.
type PortRange struct {
	Start int `json:"start" validate:"min=1,max=65535"`
	End   int `json:"end" validate:"min=1,max=65535,gtefield=Start"`
}

// DefaultPortRange is scanned when the caller does not choose.
var DefaultPortRange = PortRange{Start: 1, End: 1024}

// ParsePortRange accepts "start-end" or a single port.
func ParsePortRange(s string) (PortRange, error) {
	s = strings.TrimSpace(s)
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return PortRange{}, errors.ErrValidation(fmt.Sprintf("invalid port range %q", s))
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return PortRange{}, errors.ErrValidation(fmt.Sprintf("invalid port range %q", s))
	}
	r := PortRange{Start: start, End: end}
	return r, r.Validate()
}

// Validate checks 1 <= Start <= End <= 65535.
func (r PortRange) Validate() error {
	if r.Start < 1 || r.End > maxPort || r.Start > r.End {
		return errors.ErrValidation(fmt.Sprintf("port range %d-%d must satisfy 1 <= start <= end <= %d",
			r.Start, r.End, maxPort))
	}
	return nil
}

func (r PortRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Runner executes one nmap tier against one target.
type Runner interface {
	Run(ctx context.Context, target string, ports PortRange, tier Tier) (*nmap.Run, error)
}

// NmapRunner runs the nmap binary through github.com/Ullaakut/nmap.
type NmapRunner struct {
	HostTimeout time.Duration
	BinaryPath  string
}

// NewNmapRunner creates a runner with the given per-host timeout.
func NewNmapRunner(hostTimeout time.Duration, binaryPath string) *NmapRunner {
	if hostTimeout <= 0 {
		hostTimeout = DefaultHostTimeout
	}
	return &NmapRunner{HostTimeout: hostTimeout, BinaryPath: binaryPath}
}

func (r *NmapRunner) options(target string, ports PortRange, tier Tier) []nmap.Option {
	options := []nmap.Option{
		nmap.WithTargets(target),
		nmap.WithPorts(ports.String()),
		nmap.WithServiceInfo(),
		nmap.WithTimingTemplate(nmap.TimingAggressive),
		nmap.WithHostTimeout(r.HostTimeout),
		nmap.WithMaxRetries(1),
	}
	if tier == TierFull {
		options = append(options, nmap.WithOSDetection())
	}
	if r.BinaryPath != "" {
		options = append(options, nmap.WithBinaryPath(r.BinaryPath))
	}
	return options
}

// Run implements Runner. The error carries nmap's own diagnostics.
func (r *NmapRunner) Run(ctx context.Context, target string, ports PortRange, tier Tier) (*nmap.Run, error) {
	scanner, err := nmap.NewScanner(ctx, r.options(target, ports, tier)...)
	if err != nil {
		return nil, fmt.Errorf("create %s scanner: %w", tier, err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		if warnings != nil && len(*warnings) > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.Join(*warnings, "; "))
		}
		return nil, err
	}
	return result, nil
}

// Availability reports whether the nmap binary can be used.
type Availability interface {
	Available(ctx context.Context) bool
}

// NmapAvailability runs "nmap --version" once and caches the answer.
type NmapAvailability struct {
	Binary string

	once      sync.Once
	available bool
	version   string
}

// Available implements Availability.
func (a *NmapAvailability) Available(ctx context.Context) bool {
	a.once.Do(func() {
		binary := a.Binary
		if binary == "" {
			binary = "nmap"
		}
		ctx, cancel := context.WithTimeout(ctx, versionCheckWait)
		defer cancel()

		// #nosec G204 -- binary comes from configuration
		out, err := exec.CommandContext(ctx, binary, "--version").Output()
		if err != nil {
			logging.Default().WithComponent("detail").Warn("nmap is not available", "binary", binary, "error", err)
			return
		}
		a.available = true
		a.version = firstLine(out)
	})
	return a.available
}

// Version returns the first line of "nmap --version", empty if unavailable.
func (a *NmapAvailability) Version() string {
	return a.version
}

func firstLine(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	if sc.Scan() {
		return strings.TrimSpace(sc.Text())
	}
	return ""
}

var defaultAvailability = &NmapAvailability{}

// CheckAvailability reports whether nmap is on PATH. The check runs once per
// process.
func CheckAvailability(ctx context.Context) bool {
	return defaultAvailability.Available(ctx)
}

// NmapVersion returns the cached version line of the nmap on PATH.
func NmapVersion(ctx context.Context) string {
	defaultAvailability.Available(ctx)
	return defaultAvailability.Version()
}

// Enricher fills fields nmap could not determine, such as a hostname
// through reverse DNS. Enrichers must not fail the probe.
type Enricher interface {
	Enrich(ctx context.Context, rec *db.HostRecord)
}

// DetailProber collects ports, services and an OS guess for a single host.
type DetailProber struct {
	runner       Runner
	availability Availability
	enrichers    []Enricher
	logger       *logging.Logger
	metrics      *metrics.PrometheusMetrics
}

// DetailOption configures a DetailProber.
type DetailOption func(*DetailProber)

// WithAvailability replaces the process-wide nmap check.
func WithAvailability(a Availability) DetailOption {
	return func(p *DetailProber) { p.availability = a }
}

// WithEnrichers adds enrichers that run after a successful probe.
func WithEnrichers(enrichers ...Enricher) DetailOption {
	return func(p *DetailProber) { p.enrichers = append(p.enrichers, enrichers...) }
}

// NewDetailProber creates a prober around runner.
func NewDetailProber(runner Runner, opts ...DetailOption) *DetailProber {
	p := &DetailProber{
		runner:       runner,
		availability: defaultAvailability,
		logger:       logging.Default().WithComponent("detail"),
		metrics:      metrics.GetGlobalMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Available reports whether detail probing can run at all.
func (p *DetailProber) Available(ctx context.Context) bool {
	return p.availability.Available(ctx)
}

// Probe runs the full tier and falls back to the basic tier once. When both
// fail the error carries nmap's diagnostics.
func (p *DetailProber) Probe(ctx context.Context, addr netip.Addr, ports PortRange) (*db.HostRecord, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	if !addr.IsValid() {
		return nil, errors.ErrValidation("invalid target address")
	}
	target := addr.String()
	if !p.availability.Available(ctx) {
		return nil, errors.ErrDetailScanUnavailable(target)
	}

	rec, err := p.probeWithFallback(ctx, target, ports)
	if err != nil {
		p.logger.ErrorProbe("Detail scan failed", target, err, "ports", ports.String())
		return nil, err
	}

	for _, e := range p.enrichers {
		e.Enrich(ctx, rec)
	}
	rec.Normalize()

	p.logger.InfoProbe("Detail scan completed", target,
		"open_ports", len(rec.OpenPorts), "active", rec.IsActive)
	return rec, nil
}

func (p *DetailProber) probeWithFallback(ctx context.Context, target string, ports PortRange) (*db.HostRecord, error) {
	run, fullErr := p.runTier(ctx, target, ports, TierFull)
	if fullErr == nil {
		return p.toRecord(run, target), nil
	}
	p.logger.Warn("Full detail scan failed, retrying without OS detection",
		"target", target, "error", fullErr)

	run, basicErr := p.runTier(ctx, target, ports, TierBasic)
	if basicErr != nil {
		return nil, errors.WrapScanErrorWithTarget(errors.CodeDetailScanFailed,
			"detail scan failed in both tiers", target, basicErr).
			WithContext("full_tier_error", fullErr.Error())
	}

	rec := p.toRecord(run, target)
	if rec.OS == nil {
		os := OSUnknownPrivileged
		rec.OS = &os
	}
	return rec, nil
}

func (p *DetailProber) runTier(ctx context.Context, target string, ports PortRange, tier Tier) (*nmap.Run, error) {
	start := time.Now()
	run, err := p.runner.Run(ctx, target, ports, tier)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	p.metrics.RecordDetailScan(string(tier), result, time.Since(start))
	return run, err
}

func (p *DetailProber) toRecord(run *nmap.Run, target string) *db.HostRecord {
	rec := RecordFromRun(run)
	if rec.IP == "" {
		rec.IP = target
		rec.LastChecked = time.Now().UTC()
	}
	return &rec
}

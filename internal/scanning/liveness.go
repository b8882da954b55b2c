package scanning

import (
	"context"
	"math"
	"net/netip"
	"os/exec"
	"runtime"
	"strconv"
	"time"
)

// DefaultPingTimeout is how long a single echo request waits for a reply.
const DefaultPingTimeout = time.Second

// processGrace is added on top of the probe timeout before the ping process
// is killed.
const processGrace = time.Second

// LivenessProber decides whether an address answers. Implementations never
// return an error: timeouts, refusals and local failures all mean false.
type LivenessProber interface {
	Probe(ctx context.Context, addr netip.Addr) bool
}

// methodNamer is implemented by probers that label their metrics.
type methodNamer interface {
	Method() string
}

func proberMethod(p LivenessProber) string {
	if m, ok := p.(methodNamer); ok {
		return m.Method()
	}
	return "custom"
}

// PingProber sends one ICMP echo request through the system ping binary.
type PingProber struct {
	Timeout time.Duration
	// Binary defaults to "ping" resolved through PATH.
	Binary string

	goos string
}

// NewPingProber creates a prober for the current platform.
func NewPingProber(timeout time.Duration) *PingProber {
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	return &PingProber{Timeout: timeout, Binary: "ping", goos: runtime.GOOS}
}

// Method implements methodNamer.
func (p *PingProber) Method() string { return "ping" }

// Probe runs ping and reports whether it exited with status 0.
func (p *PingProber) Probe(ctx context.Context, addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout+processGrace)
	defer cancel()

	binary := p.Binary
	if binary == "" {
		binary = "ping"
	}

	// #nosec G204 -- binary is configuration and addr is a parsed netip.Addr
	cmd := exec.CommandContext(ctx, binary, pingArgs(p.goos, p.Timeout, addr)...)
	cmd.WaitDelay = processGrace
	return cmd.Run() == nil
}

// pingArgs builds the single-packet arguments for goos. Linux takes -W in
// whole seconds, Windows and the BSDs (darwin included) take milliseconds.
func pingArgs(goos string, timeout time.Duration, addr netip.Addr) []string {
	millis := strconv.FormatInt(timeout.Milliseconds(), 10)

	switch goos {
	case "windows":
		return []string{"-n", "1", "-w", millis, addr.String()}
	case "linux", "android", "":
		secs := int(math.Ceil(timeout.Seconds()))
		if secs < 1 {
			secs = 1
		}
		return []string{"-c", "1", "-W", strconv.Itoa(secs), addr.String()}
	default:
		return []string{"-c", "1", "-W", millis, addr.String()}
	}
}

//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package scanning

import (
	"context"
	"net/netip"
	"time"

	"github.com/anstrom/netsweep/internal/errors"
)

// ARPProber is unavailable on this platform.
type ARPProber struct{}

// NewARPProber always fails on this platform.
func NewARPProber(_ time.Duration) (*ARPProber, error) {
	return nil, errors.NewScanError(errors.CodeConfiguration,
		"arp liveness is not supported on this platform, use ping")
}

// Method implements methodNamer.
func (p *ARPProber) Method() string { return "arp" }

// Probe always reports false.
func (p *ARPProber) Probe(_ context.Context, _ netip.Addr) bool { return false }

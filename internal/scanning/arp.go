//go:build linux || darwin || freebsd || netbsd || openbsd

package scanning

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/j-keck/arping"
)

var arpTimeoutOnce sync.Once

// ARPProber resolves the address with an ARP request. It only works for
// on-link segments and needs raw socket privileges.
type ARPProber struct {
	timeout time.Duration
}

// NewARPProber creates an ARP based prober. The arping timeout is process
// wide, so the first prober created fixes it.
func NewARPProber(timeout time.Duration) (*ARPProber, error) {
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	arpTimeoutOnce.Do(func() { arping.SetTimeout(timeout) })
	return &ARPProber{timeout: timeout}, nil
}

// Method implements methodNamer.
func (p *ARPProber) Method() string { return "arp" }

// Probe reports whether any host answered the ARP request for addr.
func (p *ARPProber) Probe(ctx context.Context, addr netip.Addr) bool {
	if !addr.Is4() || ctx.Err() != nil {
		return false
	}

	result := make(chan bool, 1)
	go func() {
		_, _, err := arping.Ping(net.IP(addr.AsSlice()))
		result <- err == nil
	}()

	select {
	case alive := <-result:
		return alive
	case <-ctx.Done():
		return false
	case <-time.After(p.timeout + processGrace):
		return false
	}
}

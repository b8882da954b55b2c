// Package enrichment fills host record fields that nmap leaves empty:
// hostnames through reverse DNS or SNMP sysName and MAC vendors through the
// IEEE OUI registry.
package enrichment

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/scanning"
)

const (
	defaultResolvConf = "/etc/resolv.conf"
	defaultDNSTimeout = 2 * time.Second
)

var _ scanning.Enricher = (*DNSResolver)(nil)

// DNSResolver looks up PTR records against one DNS server.
type DNSResolver struct {
	server string
	client *dns.Client
}

// NewDNSResolver creates a resolver for server ("host:port"). An empty
// server uses the first nameserver in /etc/resolv.conf.
func NewDNSResolver(server string, timeout time.Duration) (*DNSResolver, error) {
	if timeout <= 0 {
		timeout = defaultDNSTimeout
	}
	if server == "" {
		cfg, err := dns.ClientConfigFromFile(defaultResolvConf)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", defaultResolvConf, err)
		}
		if len(cfg.Servers) == 0 {
			return nil, fmt.Errorf("no nameserver in %s", defaultResolvConf)
		}
		server = net.JoinHostPort(cfg.Servers[0], cfg.Port)
	}
	return &DNSResolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}, nil
}

// Server returns the nameserver queried.
func (r *DNSResolver) Server() string {
	return r.server
}

// LookupPTR returns the first PTR name of addr without the trailing dot.
func (r *DNSResolver) LookupPTR(ctx context.Context, addr string) (string, error) {
	name, err := dns.ReverseAddr(addr)
	if err != nil {
		return "", err
	}

	m := new(dns.Msg)
	m.SetQuestion(name, dns.TypePTR)
	m.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return "", err
	}
	if in.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("ptr %s: %s", name, dns.RcodeToString[in.Rcode])
	}
	for _, rr := range in.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", fmt.Errorf("ptr %s: no answer", name)
}

// Enrich sets the hostname when nmap did not report one.
func (r *DNSResolver) Enrich(ctx context.Context, rec *db.HostRecord) {
	if rec.Hostname != nil || rec.IP == "" {
		return
	}
	if name, err := r.LookupPTR(ctx, rec.IP); err == nil && name != "" {
		rec.Hostname = &name
	}
}

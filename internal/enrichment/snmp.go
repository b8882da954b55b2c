package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/scanning"
)

// sysNameOID is SNMPv2-MIB::sysName.0.
const sysNameOID = "1.3.6.1.2.1.1.5.0"

const (
	defaultSNMPPort    = 161
	defaultSNMPTimeout = 2 * time.Second
)

var _ scanning.Enricher = (*SNMPResolver)(nil)

// SNMPResolver reads sysName over SNMP v2c.
type SNMPResolver struct {
	Community string
	Port      uint16
	Timeout   time.Duration
	Retries   int
}

// NewSNMPResolver creates a v2c resolver with the given community.
func NewSNMPResolver(community string, timeout time.Duration) *SNMPResolver {
	if timeout <= 0 {
		timeout = defaultSNMPTimeout
	}
	return &SNMPResolver{Community: community, Port: defaultSNMPPort, Timeout: timeout}
}

// SysName returns the sysName of addr.
func (r *SNMPResolver) SysName(ctx context.Context, addr string) (string, error) {
	g := &gosnmp.GoSNMP{
		Target:    addr,
		Port:      r.Port,
		Community: r.Community,
		Version:   gosnmp.Version2c,
		Timeout:   r.Timeout,
		Retries:   r.Retries,
		Context:   ctx,
	}
	if err := g.Connect(); err != nil {
		return "", fmt.Errorf("snmp connect %s: %w", addr, err)
	}
	defer func() { _ = g.Conn.Close() }()

	pkt, err := g.Get([]string{sysNameOID})
	if err != nil {
		return "", fmt.Errorf("snmp get %s: %w", addr, err)
	}
	for _, v := range pkt.Variables {
		if v.Type != gosnmp.OctetString {
			continue
		}
		if b, ok := v.Value.([]byte); ok {
			if name := strings.TrimSpace(string(b)); name != "" {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("snmp %s: sysName not set", addr)
}

// Enrich sets the hostname from sysName when no other source found one.
func (r *SNMPResolver) Enrich(ctx context.Context, rec *db.HostRecord) {
	if rec.Hostname != nil || rec.IP == "" || !rec.IsActive {
		return
	}
	if name, err := r.SysName(ctx, rec.IP); err == nil {
		rec.Hostname = &name
	}
}

package enrichment

import (
	"time"

	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/scanning"
)

// Options selects the enrichers to build.
type Options struct {
	ReverseDNS    bool
	DNSServer     string
	SNMPCommunity string
	OUIDatabase   string
	Timeout       time.Duration
}

// New builds the enrichers enabled in opts in the order they should run:
// reverse DNS, then SNMP, then the vendor registry. A source that cannot be
// initialized is logged and skipped.
func New(opts Options) []scanning.Enricher {
	logger := logging.Default().WithComponent("enrichment")
	var out []scanning.Enricher

	if opts.ReverseDNS {
		r, err := NewDNSResolver(opts.DNSServer, opts.Timeout)
		if err != nil {
			logger.Warn("Reverse DNS disabled", "error", err)
		} else {
			logger.Debug("Reverse DNS enabled", "server", r.Server())
			out = append(out, r)
		}
	}

	if opts.SNMPCommunity != "" {
		out = append(out, NewSNMPResolver(opts.SNMPCommunity, opts.Timeout))
	}

	if opts.OUIDatabase != "" {
		v, err := OpenVendorDB(opts.OUIDatabase)
		if err != nil {
			logger.Warn("MAC vendor lookup disabled", "error", err)
		} else {
			out = append(out, v)
		}
	}

	return out
}

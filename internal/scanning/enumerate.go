package scanning

import (
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"

	"github.com/anstrom/netsweep/internal/errors"
)

const ipv4Bits = 32

// NormalizeCIDR parses an IPv4 CIDR and returns it in masked form, so
// "192.168.1.7/24" becomes 192.168.1.0/24.
func NormalizeCIDR(cidr string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return netip.Prefix{}, errors.ErrInvalidCIDR(cidr, err)
	}
	if !prefix.Addr().Is4() {
		return netip.Prefix{}, errors.ErrInvalidCIDR(cidr, fmt.Errorf("only IPv4 networks are supported"))
	}
	return prefix.Masked(), nil
}

// AddressCount returns how many addresses EnumerateHosts yields for prefix
// without allocating them.
func AddressCount(prefix netip.Prefix) int {
	size := 1 << (ipv4Bits - prefix.Bits())
	if size > 2 {
		return size - 2
	}
	return 1
}

// EnumerateHosts returns the usable host addresses of an IPv4 CIDR in
// ascending order. Networks with more than two addresses exclude the network
// and broadcast address. /31 and /32 yield only the network address.
func EnumerateHosts(cidr string) ([]netip.Addr, error) {
	prefix, err := NormalizeCIDR(cidr)
	if err != nil {
		return nil, err
	}

	r := netipx.RangeOfPrefix(prefix)
	first, last := r.From(), r.To()

	if AddressCount(prefix) == 1 {
		return []netip.Addr{first}, nil
	}

	addrs := make([]netip.Addr, 0, AddressCount(prefix))
	for a := first.Next(); a.Less(last); a = a.Next() {
		addrs = append(addrs, a)
	}
	return addrs, nil
}

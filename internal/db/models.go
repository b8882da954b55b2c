package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/netip"
	"sort"
	"time"
)

// NetworkSegment is a named IPv4 network the engine sweeps.
type NetworkSegment struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	CIDR        string    `json:"cidr" db:"cidr"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// HostRecord is the state netsweep knows about a single address.
// OpenPorts is ascending and unique, and both OpenPorts and Services are
// empty unless PortsScanned is set. Call Normalize before handing a record
// to anyone else.
type HostRecord struct {
	IP           string     `json:"ip" db:"ip"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastChecked  time.Time  `json:"last_checked" db:"last_checked"`
	Hostname     *string    `json:"hostname,omitempty" db:"hostname"`
	MACAddress   *string    `json:"mac_address,omitempty" db:"mac_address"`
	Vendor       *string    `json:"vendor,omitempty" db:"vendor"`
	OS           *string    `json:"os,omitempty" db:"os"`
	OSAccuracy   *int       `json:"os_accuracy,omitempty" db:"os_accuracy"`
	OpenPorts    PortList   `json:"open_ports" db:"open_ports"`
	Services     ServiceMap `json:"services" db:"services"`
	PortsScanned bool       `json:"ports_scanned" db:"ports_scanned"`
}

// Normalize enforces the record invariants in place.
func (h *HostRecord) Normalize() {
	if !h.PortsScanned {
		h.OpenPorts = PortList{}
		h.Services = ServiceMap{}
		return
	}
	h.OpenPorts = h.OpenPorts.Normalized()
	if h.Services == nil {
		h.Services = ServiceMap{}
	}
	open := make(map[int]struct{}, len(h.OpenPorts))
	for _, p := range h.OpenPorts {
		open[p] = struct{}{}
	}
	for port := range h.Services {
		if _, ok := open[port]; !ok {
			delete(h.Services, port)
		}
	}
}

// MergeDetails copies the detail fields of prev onto h when h has none.
// A sweep only learns liveness, so re-sweeping keeps what the last detail
// probe found.
func (h *HostRecord) MergeDetails(prev HostRecord) {
	if h.Hostname == nil {
		h.Hostname = prev.Hostname
	}
	if h.MACAddress == nil {
		h.MACAddress = prev.MACAddress
		h.Vendor = prev.Vendor
	}
	if h.OS == nil {
		h.OS = prev.OS
		h.OSAccuracy = prev.OSAccuracy
	}
	if !h.PortsScanned && prev.PortsScanned {
		h.PortsScanned = true
		h.OpenPorts = append(PortList(nil), prev.OpenPorts...)
		h.Services = make(ServiceMap, len(prev.Services))
		for k, v := range prev.Services {
			h.Services[k] = v
		}
	}
}

// PortList is a set of port numbers kept in ascending order.
type PortList []int

// Normalized returns a sorted copy without duplicates.
func (p PortList) Normalized() PortList {
	out := make(PortList, 0, len(p))
	seen := make(map[int]struct{}, len(p))
	for _, port := range p {
		if _, ok := seen[port]; ok {
			continue
		}
		seen[port] = struct{}{}
		out = append(out, port)
	}
	sort.Ints(out)
	return out
}

// Scan implements sql.Scanner for JSONB columns.
func (p *PortList) Scan(value interface{}) error {
	return scanJSON(value, p)
}

// Value implements driver.Valuer.
func (p PortList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]int(p))
	return string(data), err
}

// ServiceMap maps an open port to its service descriptor.
type ServiceMap map[int]string

// Scan implements sql.Scanner for JSONB columns.
func (s *ServiceMap) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// Value implements driver.Valuer.
func (s ServiceMap) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[int]string(s))
	return string(data), err
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, dest)
	}
}

// SegmentDetail is a segment together with its stored records and counts.
type SegmentDetail struct {
	Segment     NetworkSegment `json:"segment"`
	Hosts       []HostRecord   `json:"ips"`
	TotalIPs    int            `json:"total_ips"`
	ActiveIPs   int            `json:"active_ips"`
	InactiveIPs int            `json:"inactive_ips"`
}

// Stats aggregates host counts across all segments.
type Stats struct {
	TotalNetworks int `json:"total_networks"`
	TotalIPs      int `json:"total_ips"`
	ActiveIPs     int `json:"active_ips"`
	InactiveIPs   int `json:"inactive_ips"`
}

// CountActive returns how many records are live.
func CountActive(records []HostRecord) int {
	n := 0
	for i := range records {
		if records[i].IsActive {
			n++
		}
	}
	return n
}

// lessIP orders addresses numerically; unparsable strings sort last.
func lessIP(a, b string) bool {
	ipA, errA := netip.ParseAddr(a)
	ipB, errB := netip.ParseAddr(b)
	switch {
	case errA != nil && errB != nil:
		return a < b
	case errA != nil:
		return false
	case errB != nil:
		return true
	}
	return ipA.Less(ipB)
}

// SortByIP orders records by address in place.
func SortByIP(records []HostRecord) {
	sort.Slice(records, func(i, j int) bool { return lessIP(records[i].IP, records[j].IP) })
}

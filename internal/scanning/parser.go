package scanning

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
)

const (
	portStateOpen  = "open"
	addrTypeIPv4   = "ipv4"
	addrTypeMAC    = "mac"
	hostStateUp    = "up"
	unknownService = "unknown"
)

// ParseReport converts nmap XML output into a host record. Output that does
// not parse, or that contains no host, yields an empty record and a logged
// parse anomaly rather than an error.
func ParseReport(data []byte) db.HostRecord {
	run := &nmap.Run{}
	if err := nmap.Parse(data, run); err != nil {
		logParseAnomaly("nmap output is not valid XML", err)
		return emptyRecord()
	}
	return RecordFromRun(run)
}

// RecordFromRun converts the first host of a parsed nmap run.
func RecordFromRun(run *nmap.Run) db.HostRecord {
	if run == nil || len(run.Hosts) == 0 {
		logParseAnomaly("nmap output contains no host", nil)
		return emptyRecord()
	}

	h := &run.Hosts[0]
	rec := emptyRecord()
	rec.PortsScanned = true
	rec.IsActive = h.Status.State == hostStateUp
	rec.LastChecked = time.Now().UTC()

	for _, addr := range h.Addresses {
		switch addr.AddrType {
		case addrTypeIPv4:
			if rec.IP == "" {
				rec.IP = addr.Addr
			}
		case addrTypeMAC:
			mac := strings.ToUpper(addr.Addr)
			rec.MACAddress = &mac
			if addr.Vendor != "" {
				vendor := addr.Vendor
				rec.Vendor = &vendor
			}
		}
	}

	for _, hn := range h.Hostnames {
		if hn.Name != "" {
			name := hn.Name
			rec.Hostname = &name
			break
		}
	}

	best := -1
	for i, match := range h.OS.Matches {
		if best < 0 || match.Accuracy > h.OS.Matches[best].Accuracy {
			best = i
		}
	}
	if best >= 0 {
		match := h.OS.Matches[best]
		desc := fmt.Sprintf("%s (%d%% confidence)", match.Name, match.Accuracy)
		accuracy := match.Accuracy
		rec.OS = &desc
		rec.OSAccuracy = &accuracy
	}

	for _, port := range h.Ports {
		if port.State.State != portStateOpen {
			continue
		}
		id := int(port.ID)
		rec.OpenPorts = append(rec.OpenPorts, id)
		rec.Services[id] = describeService(port.Service.Name, port.Service.Product, port.Service.Version)
	}

	rec.Normalize()
	return rec
}

// describeService prefers "product version", then the service name.
func describeService(name, product, version string) string {
	switch {
	case product != "" && version != "":
		return product + " " + version
	case name != "":
		return name
	default:
		return unknownService
	}
}

func emptyRecord() db.HostRecord {
	return db.HostRecord{OpenPorts: db.PortList{}, Services: db.ServiceMap{}}
}

func logParseAnomaly(msg string, cause error) {
	err := errors.NewScanError(errors.CodeParseAnomaly, msg)
	if cause != nil {
		err = errors.WrapScanError(errors.CodeParseAnomaly, msg, cause)
	}
	logging.Default().WithComponent("parser").Warn("Discarding nmap output", "error", err)
}

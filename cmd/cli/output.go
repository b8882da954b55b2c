package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/scanning"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
)

const timeLayout = "2006-01-02 15:04"

func validateOutputFormat() error {
	switch outputFormat {
	case formatTable, formatJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q, use table or json", outputFormat)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTable writes rows under header as a table.
func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	cols := make([]any, len(header))
	for i, h := range header {
		cols[i] = h
	}
	table.Header(cols...)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func formatPorts(ports db.PortList) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func formatServices(services db.ServiceMap) string {
	if len(services) == 0 {
		return "-"
	}
	ports := make([]int, 0, len(services))
	for p := range services {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprintf("%d/%s", p, services[p])
	}
	return strings.Join(parts, " ")
}

func activeLabel(active bool) string {
	if active {
		return "up"
	}
	return "down"
}

// hostRows renders host records one per row.
func hostRows(hosts []db.HostRecord) [][]string {
	rows := make([][]string, 0, len(hosts))
	for i := range hosts {
		h := &hosts[i]
		checked := "-"
		if !h.LastChecked.IsZero() {
			checked = h.LastChecked.Local().Format(timeLayout)
		}
		rows = append(rows, []string{
			h.IP,
			activeLabel(h.IsActive),
			deref(h.Hostname),
			deref(h.MACAddress),
			deref(h.Vendor),
			deref(h.OS),
			formatPorts(h.OpenPorts),
			checked,
		})
	}
	return rows
}

var hostHeader = []string{"IP", "State", "Hostname", "MAC", "Vendor", "OS", "Open Ports", "Last Checked"}

func printHosts(w io.Writer, hosts []db.HostRecord) error {
	if outputFormat == formatJSON {
		if hosts == nil {
			hosts = []db.HostRecord{}
		}
		return printJSON(w, hosts)
	}
	return renderTable(w, hostHeader, hostRows(hosts))
}

// printHostDetail shows a single probed host, including its services.
func printHostDetail(w io.Writer, h *db.HostRecord) error {
	if outputFormat == formatJSON {
		return printJSON(w, h)
	}
	if err := renderTable(w, hostHeader, hostRows([]db.HostRecord{*h})); err != nil {
		return err
	}
	if len(h.Services) > 0 {
		_, err := fmt.Fprintf(w, "Services: %s\n", formatServices(h.Services))
		return err
	}
	return nil
}

// portsValue is a pflag.Value holding a port range.
type portsValue struct {
	set   bool
	value scanning.PortRange
}

var _ pflag.Value = (*portsValue)(nil)

func newPortsValue(def scanning.PortRange) *portsValue {
	return &portsValue{value: def}
}

func (p *portsValue) String() string {
	return p.value.String()
}

func (p *portsValue) Set(s string) error {
	pr, err := scanning.ParsePortRange(s)
	if err != nil {
		return err
	}
	p.value = pr
	p.set = true
	return nil
}

func (p *portsValue) Type() string {
	return "ports"
}

// resolve returns the flag value, or fallback when the flag was not given.
func (p *portsValue) resolve(fallback scanning.PortRange) scanning.PortRange {
	if p.set {
		return p.value
	}
	return fallback
}

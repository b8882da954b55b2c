package enrichment

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/klauspost/oui"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/scanning"
)

var _ scanning.Enricher = (*VendorDB)(nil)

// ouiQuerier is the part of oui.OuiDB used here.
type ouiQuerier interface {
	Query(string) (*oui.Entry, error)
}

// VendorDB resolves MAC prefixes to manufacturers from an IEEE oui.txt file.
type VendorDB struct {
	db ouiQuerier
}

// OpenVendorDB loads the registry at path into memory.
func OpenVendorDB(path string) (*VendorDB, error) {
	database, err := oui.OpenStaticFile(path)
	if err != nil {
		return nil, fmt.Errorf("open oui database %s: %w", path, err)
	}
	return &VendorDB{db: database}, nil
}

// Lookup returns the manufacturer for mac, empty when unknown.
func (v *VendorDB) Lookup(mac string) (string, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return "", err
	}
	entry, err := v.db.Query(hw.String())
	if err != nil {
		if errors.Is(err, oui.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return entry.Manufacturer, nil
}

// Enrich sets the vendor when nmap reported a MAC but no vendor.
func (v *VendorDB) Enrich(_ context.Context, rec *db.HostRecord) {
	if rec.MACAddress == nil || rec.Vendor != nil {
		return
	}
	if vendor, err := v.Lookup(*rec.MACAddress); err == nil && vendor != "" {
		rec.Vendor = &vendor
	}
}

package handlers

import (
	"net/http"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/scanning"
	"github.com/anstrom/netsweep/internal/services"
)

// ScanHandler serves scans that are not tied to a stored segment.
type ScanHandler struct {
	base
	scans        ScanStarter
	defaultPorts scanning.PortRange
}

// NewScanHandler creates a scan handler.
func NewScanHandler(scans ScanStarter, defaultPorts scanning.PortRange, logger *logging.Logger,
	maxRequestSize int64) *ScanHandler {
	return &ScanHandler{
		base:         newBase(logger, "scans", maxRequestSize),
		scans:        scans,
		defaultPorts: defaultPorts,
	}
}

// AdhocProbeRequest asks for a detail probe of one address.
type AdhocProbeRequest struct {
	IP    string `json:"ip" validate:"required,ipv4"`
	Ports string `json:"ports,omitempty" validate:"omitempty,max=11"`
}

// QuickCheckRequest lists addresses to check for liveness.
type QuickCheckRequest struct {
	Addresses []string `json:"addresses" validate:"required,min=1,dive,ipv4"`
}

// QuickCheckResponse carries one record per requested address, in order.
type QuickCheckResponse struct {
	Hosts    []db.HostRecord `json:"hosts"`
	Active   int             `json:"active"`
	Inactive int             `json:"inactive"`
}

// Probe queues a detail probe of an address outside any segment. The
// result is kept only in the job.
//
//	@Summary	Ad-hoc host probe
//	@Tags		scans
//	@Accept		json
//	@Produce	json
//	@Param		request	body		AdhocProbeRequest	true	"Target"
//	@Success	202		{object}	JobAccepted
//	@Failure	400		{object}	ErrorResponse
//	@Failure	503		{object}	ErrorResponse
//	@Router		/probe [post]
func (h *ScanHandler) Probe(w http.ResponseWriter, r *http.Request) {
	var req AdhocProbeRequest
	if err := h.parseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	ports, err := resolvePorts(req.Ports, h.defaultPorts)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	job, err := h.scans.StartAdhocProbe(r.Context(), req.IP, ports)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.accepted(w, r, job)
}

// QuickCheck checks liveness of a short list of addresses and answers when
// all are done.
//
//	@Summary	Quick liveness check
//	@Tags		scans
//	@Accept		json
//	@Produce	json
//	@Param		request	body		QuickCheckRequest	true	"Addresses"
//	@Success	200		{object}	QuickCheckResponse
//	@Failure	400		{object}	ErrorResponse
//	@Router		/quick-check [post]
func (h *ScanHandler) QuickCheck(w http.ResponseWriter, r *http.Request) {
	var req QuickCheckRequest
	if err := h.parseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	hosts, err := h.scans.QuickCheck(r.Context(), req.Addresses)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	active := db.CountActive(hosts)
	h.writeJSON(w, r, http.StatusOK, QuickCheckResponse{
		Hosts:    hosts,
		Active:   active,
		Inactive: len(hosts) - active,
	})
}

var (
	_ ScanStarter    = (*services.ScanService)(nil)
	_ SegmentManager = (*services.SegmentService)(nil)
)

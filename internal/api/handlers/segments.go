package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/jobs"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/scanning"
	"github.com/anstrom/netsweep/internal/services"
)

// SegmentManager is the segment CRUD the handlers call.
type SegmentManager interface {
	List(ctx context.Context) ([]db.NetworkSegment, error)
	Create(ctx context.Context, in services.CreateSegmentInput) (*db.NetworkSegment, error)
	Detail(ctx context.Context, id string) (*db.SegmentDetail, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*db.Stats, error)
}

// ScanStarter launches scans as background jobs.
type ScanStarter interface {
	StartSweep(ctx context.Context, segmentID string) (jobs.Job, error)
	StartHostProbe(ctx context.Context, segmentID, addr string, ports scanning.PortRange) (jobs.Job, error)
	StartAdhocProbe(ctx context.Context, addr string, ports scanning.PortRange) (jobs.Job, error)
	QuickCheck(ctx context.Context, addrs []string) ([]db.HostRecord, error)
}

// SegmentHandler serves segment CRUD and the scans launched on segments.
type SegmentHandler struct {
	base
	segments     SegmentManager
	scans        ScanStarter
	defaultPorts scanning.PortRange
}

// NewSegmentHandler creates a segment handler.
func NewSegmentHandler(segments SegmentManager, scans ScanStarter, defaultPorts scanning.PortRange,
	logger *logging.Logger, maxRequestSize int64) *SegmentHandler {
	return &SegmentHandler{
		base:         newBase(logger, "segments", maxRequestSize),
		segments:     segments,
		scans:        scans,
		defaultPorts: defaultPorts,
	}
}

// SegmentListResponse wraps the segment list.
type SegmentListResponse struct {
	Segments []db.NetworkSegment `json:"segments"`
	Total    int                 `json:"total"`
}

// JobAccepted is returned when a scan was queued.
type JobAccepted struct {
	Job       jobs.Job `json:"job"`
	StatusURL string   `json:"status_url"`
}

// ProbeRequest selects the ports of a detail probe. Empty means the
// configured default range.
type ProbeRequest struct {
	Ports string `json:"ports,omitempty" validate:"omitempty,max=11"`
}

// ListSegments returns all segments.
//
//	@Summary	List segments
//	@Tags		segments
//	@Produce	json
//	@Success	200	{object}	SegmentListResponse
//	@Router		/segments [get]
func (h *SegmentHandler) ListSegments(w http.ResponseWriter, r *http.Request) {
	segs, err := h.segments.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if segs == nil {
		segs = []db.NetworkSegment{}
	}
	h.writeJSON(w, r, http.StatusOK, SegmentListResponse{Segments: segs, Total: len(segs)})
}

// CreateSegment registers a new segment.
//
//	@Summary	Create segment
//	@Tags		segments
//	@Accept		json
//	@Produce	json
//	@Param		segment	body		services.CreateSegmentInput	true	"Segment"
//	@Success	201		{object}	db.NetworkSegment
//	@Failure	400		{object}	ErrorResponse
//	@Failure	409		{object}	ErrorResponse
//	@Router		/segments [post]
func (h *SegmentHandler) CreateSegment(w http.ResponseWriter, r *http.Request) {
	var in services.CreateSegmentInput
	if err := h.parseJSON(w, r, &in); err != nil {
		h.handleError(w, r, err)
		return
	}

	seg, err := h.segments.Create(r.Context(), in)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/segments/"+url.PathEscape(seg.ID))
	h.writeJSON(w, r, http.StatusCreated, seg)
}

// GetSegment returns a segment with its host records and counts.
//
//	@Summary	Segment detail
//	@Tags		segments
//	@Produce	json
//	@Param		id	path		string	true	"Segment ID"
//	@Success	200	{object}	db.SegmentDetail
//	@Failure	404	{object}	ErrorResponse
//	@Router		/segments/{id} [get]
func (h *SegmentHandler) GetSegment(w http.ResponseWriter, r *http.Request) {
	detail, err := h.segments.Detail(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, detail)
}

// DeleteSegment removes a segment and its records.
//
//	@Summary	Delete segment
//	@Tags		segments
//	@Param		id	path	string	true	"Segment ID"
//	@Success	204
//	@Failure	404	{object}	ErrorResponse
//	@Router		/segments/{id} [delete]
func (h *SegmentHandler) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	if err := h.segments.Delete(r.Context(), pathVar(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SweepSegment queues a liveness sweep of every address in the segment.
//
//	@Summary	Sweep segment
//	@Tags		scans
//	@Produce	json
//	@Param		id	path		string	true	"Segment ID"
//	@Success	202	{object}	JobAccepted
//	@Failure	404	{object}	ErrorResponse
//	@Failure	409	{object}	ErrorResponse
//	@Failure	429	{object}	ErrorResponse
//	@Router		/segments/{id}/sweep [post]
func (h *SegmentHandler) SweepSegment(w http.ResponseWriter, r *http.Request) {
	job, err := h.scans.StartSweep(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.accepted(w, r, job)
}

// ProbeSegmentHost queues a detail probe of one address of the segment.
//
//	@Summary	Probe host in segment
//	@Tags		scans
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"Segment ID"
//	@Param		ip		path		string			true	"IPv4 address"
//	@Param		request	body		ProbeRequest	false	"Ports"
//	@Success	202		{object}	JobAccepted
//	@Failure	400		{object}	ErrorResponse
//	@Failure	404		{object}	ErrorResponse
//	@Failure	409		{object}	ErrorResponse
//	@Failure	503		{object}	ErrorResponse
//	@Router		/segments/{id}/hosts/{ip}/probe [post]
func (h *SegmentHandler) ProbeSegmentHost(w http.ResponseWriter, r *http.Request) {
	ports, err := h.probePorts(w, r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	job, err := h.scans.StartHostProbe(r.Context(), pathVar(r, "id"), pathVar(r, "ip"), ports)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.accepted(w, r, job)
}

// Stats returns host counts across all segments.
//
//	@Summary	Host statistics
//	@Tags		segments
//	@Produce	json
//	@Success	200	{object}	db.Stats
//	@Router		/stats [get]
func (h *SegmentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.segments.Stats(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, stats)
}

// probePorts reads an optional ProbeRequest body.
func (h *SegmentHandler) probePorts(w http.ResponseWriter, r *http.Request) (scanning.PortRange, error) {
	if r.ContentLength == 0 {
		return h.defaultPorts, nil
	}
	var req ProbeRequest
	if err := h.parseJSON(w, r, &req); err != nil {
		return scanning.PortRange{}, err
	}
	return resolvePorts(req.Ports, h.defaultPorts)
}

func resolvePorts(raw string, def scanning.PortRange) (scanning.PortRange, error) {
	if raw == "" {
		return def, nil
	}
	return scanning.ParsePortRange(raw)
}

func (b *base) accepted(w http.ResponseWriter, r *http.Request, job jobs.Job) {
	statusURL := "/api/v1/jobs/" + url.PathEscape(job.Key)
	w.Header().Set("Location", statusURL)
	b.writeJSON(w, r, http.StatusAccepted, JobAccepted{Job: job, StatusURL: statusURL})
}

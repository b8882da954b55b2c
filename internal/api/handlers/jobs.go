package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/netsweep/internal/api/middleware"
	"github.com/anstrom/netsweep/internal/jobs"
	"github.com/anstrom/netsweep/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

// MessageJob is the type of a job update frame.
const MessageJob = "job"

// JobSource is the job registry the handlers read.
type JobSource interface {
	Status(key string) jobs.Job
	List() []jobs.Job
	Subscribe(key string) (<-chan jobs.Job, func())
}

// JobHandler serves job polling and streaming.
type JobHandler struct {
	base
	jobs     JobSource
	upgrader websocket.Upgrader
}

// NewJobHandler creates a job handler. checkOrigin decides which browser
// origins may open a stream; nil accepts same-origin requests only.
func NewJobHandler(source JobSource, logger *logging.Logger, checkOrigin func(r *http.Request) bool) *JobHandler {
	return &JobHandler{
		base: newBase(logger, "jobs", 0),
		jobs: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// JobListResponse wraps the job list.
type JobListResponse struct {
	Jobs  []jobs.Job `json:"jobs"`
	Total int        `json:"total"`
}

// WebSocketMessage is one frame of a job stream.
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// ListJobs returns known jobs, optionally filtered by status and kind.
//
//	@Summary	List jobs
//	@Tags		jobs
//	@Produce	json
//	@Param		status	query		string	false	"not_started, scanning, completed or error"
//	@Param		kind	query		string	false	"sweep, probe or adhoc"
//	@Success	200		{object}	JobListResponse
//	@Router		/jobs [get]
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := jobs.State(r.URL.Query().Get("status"))
	kind := jobs.Kind(r.URL.Query().Get("kind"))

	all := h.jobs.List()
	out := make([]jobs.Job, 0, len(all))
	for _, j := range all {
		if status != "" && j.State != status {
			continue
		}
		if kind != "" && j.Kind != kind {
			continue
		}
		out = append(out, j)
	}
	h.writeJSON(w, r, http.StatusOK, JobListResponse{Jobs: out, Total: len(out)})
}

// GetJob returns the current snapshot of a job. Unknown keys report
// not_started.
//
//	@Summary	Job status
//	@Tags		jobs
//	@Produce	json
//	@Param		key	path		string	true	"Job key"
//	@Success	200	{object}	jobs.Job
//	@Router		/jobs/{key} [get]
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.jobs.Status(pathVar(r, "key")))
}

// StreamJob pushes every change of a job over a WebSocket and closes the
// stream once the job reaches a terminal state.
//
//	@Summary	Stream job updates
//	@Tags		jobs
//	@Param		key	path	string	true	"Job key"
//	@Success	101
//	@Router		/jobs/{key}/ws [get]
func (h *JobHandler) StreamJob(w http.ResponseWriter, r *http.Request) {
	key := pathVar(r, "key")
	requestID := middleware.GetRequestID(r)

	// subscribe first so no change between handshake and stream is lost
	updates, unsubscribe := h.jobs.Subscribe(key)
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade WebSocket connection", "request_id", requestID, "error", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			h.logger.Debug("Error closing WebSocket connection", "request_id", requestID, "error", err)
		}
	}()

	h.logger.Debug("Job stream opened", "request_id", requestID, "job", key)
	closed := h.readPump(conn, requestID)
	h.writePump(conn, updates, closed, requestID)
}

// readPump discards client frames and closes the returned channel when the
// client goes away.
func (h *JobHandler) readPump(conn *websocket.Conn, requestID string) <-chan struct{} {
	closed := make(chan struct{})

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("WebSocket unexpected close", "request_id", requestID, "error", err)
				}
				return
			}
		}
	}()
	return closed
}

func (h *JobHandler) writePump(conn *websocket.Conn, updates <-chan jobs.Job, closed <-chan struct{}, requestID string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return

		case job, ok := <-updates:
			if !ok {
				return
			}
			msg := WebSocketMessage{Type: MessageJob, Timestamp: time.Now().UTC(), Data: job, RequestID: requestID}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("Job stream write failed", "request_id", requestID, "error", err)
				return
			}
			if job.State.Terminal() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.State)),
					time.Now().Add(writeWait))
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("Ping failed, closing connection", "request_id", requestID, "error", err)
				return
			}
		}
	}
}

var _ JobSource = (*jobs.Tracker)(nil)

// Package handlers provides HTTP request handlers for the netsweep API.
// This file contains the response and request helpers shared by all
// handlers.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/anstrom/netsweep/internal/api/middleware"
	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
)

// DefaultMaxRequestSize caps request bodies when no limit is configured.
const DefaultMaxRequestSize = 1 << 20

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// base carries what every handler needs to answer a request.
type base struct {
	logger         *logging.Logger
	validator      *validator.Validate
	maxRequestSize int64
}

func newBase(logger *logging.Logger, component string, maxRequestSize int64) base {
	if logger == nil {
		logger = logging.Default()
	}
	if maxRequestSize <= 0 {
		maxRequestSize = DefaultMaxRequestSize
	}
	return base{
		logger:         logger.WithComponent(component),
		validator:      validator.New(),
		maxRequestSize: maxRequestSize,
	}
}

// statusForError maps an error code to the HTTP status returned to
// clients.
func statusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeValidation, errors.CodeInvalidCIDR:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeRateLimited:
		return http.StatusTooManyRequests
	case errors.CodeDetailScanUnavailable:
		return http.StatusServiceUnavailable
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes data as a JSON response.
func (b *base) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		b.logger.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// writeError answers with status and a JSON error body. Server errors keep
// their detail out of the response and in the log.
func (b *base) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	requestID := middleware.GetRequestID(r)
	resp := ErrorResponse{
		Error:     http.StatusText(status),
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		resp.Code = string(code)
	}

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		b.logger.Error("Request failed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		resp.Message = "internal error"
	} else if err != nil {
		resp.Message = err.Error()
	}

	b.writeJSON(w, r, status, resp)
}

// handleError answers with the status that matches err's code.
func (b *base) handleError(w http.ResponseWriter, r *http.Request, err error) {
	b.writeError(w, r, statusForError(err), err)
}

// parseJSON decodes the request body into dst and validates it. Unknown
// fields and oversized bodies are rejected.
func (b *base) parseJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.ErrValidation("request body is required")
	}
	r.Body = http.MaxBytesReader(w, r.Body, b.maxRequestSize)
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if stderrors.Is(err, io.EOF) {
			return errors.ErrValidation("request body is required")
		}
		return errors.WrapScanError(errors.CodeValidation, "invalid JSON", err)
	}
	if decoder.More() {
		return errors.ErrValidation("request body must contain a single JSON object")
	}

	return b.validate(dst)
}

func (b *base) validate(v interface{}) error {
	err := b.validator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.WrapScanError(errors.CodeValidation, "invalid request", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return errors.ErrValidation("invalid request: " + strings.Join(msgs, ", "))
}

// pathVar returns a trimmed route variable.
func pathVar(r *http.Request, name string) string {
	return strings.TrimSpace(mux.Vars(r)[name])
}

package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
)

func createTestLogger() *logging.Logger {
	return logging.NewWithWriter(logging.DefaultConfig(), &bytes.Buffer{})
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apierrors.ErrValidation("bad"), http.StatusBadRequest},
		{"invalid cidr", apierrors.ErrInvalidCIDR("x", nil), http.StatusBadRequest},
		{"not found", apierrors.ErrNotFound("segment", "1"), http.StatusNotFound},
		{"conflict", apierrors.ErrConflict("busy", "1"), http.StatusConflict},
		{"rate limited", apierrors.NewScanError(apierrors.CodeRateLimited, "full"), http.StatusTooManyRequests},
		{"detail unavailable", apierrors.ErrDetailScanUnavailable("10.0.0.1"), http.StatusServiceUnavailable},
		{"timeout", apierrors.NewScanError(apierrors.CodeTimeout, "slow"), http.StatusGatewayTimeout},
		{"storage", apierrors.NewDatabaseError(apierrors.CodeStorageIO, "disk"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("outer: %w", apierrors.ErrNotFound("segment", "1")), http.StatusNotFound},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	b := newBase(createTestLogger(), "test", 0)

	w := httptest.NewRecorder()
	b.handleError(w, httptest.NewRequest(http.MethodGet, "/", nil),
		apierrors.NewDatabaseError(apierrors.CodeDatabaseQuery, "password=secret"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "internal error", resp.Message)
	assert.Equal(t, "DATABASE_QUERY", resp.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestWriteErrorClientDetail(t *testing.T) {
	b := newBase(createTestLogger(), "test", 0)

	w := httptest.NewRecorder()
	b.handleError(w, httptest.NewRequest(http.MethodGet, "/", nil), apierrors.ErrValidation("name is required"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	resp := decodeError(t, w)
	assert.Equal(t, "VALIDATION", resp.Code)
	assert.Contains(t, resp.Message, "name is required")
	assert.Equal(t, "Bad Request", resp.Error)
}

func TestParseJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name" validate:"required"`
		IP   string `json:"ip" validate:"omitempty,ipv4"`
	}

	tests := []struct {
		name    string
		body    string
		maxSize int64
		wantErr bool
	}{
		{name: "valid", body: `{"name":"lab"}`},
		{name: "valid with ip", body: `{"name":"lab","ip":"10.0.0.1"}`},
		{name: "empty body", body: ``, wantErr: true},
		{name: "syntax error", body: `{"name":`, wantErr: true},
		{name: "unknown field", body: `{"name":"lab","extra":1}`, wantErr: true},
		{name: "missing required", body: `{}`, wantErr: true},
		{name: "bad ip", body: `{"name":"lab","ip":"::1"}`, wantErr: true},
		{name: "two objects", body: `{"name":"a"}{"name":"b"}`, wantErr: true},
		{name: "too large", body: `{"name":"` + strings.Repeat("x", 100) + `"}`, maxSize: 32, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBase(createTestLogger(), "test", tt.maxSize)
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload

			err := b.parseJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apierrors.IsCode(err, apierrors.CodeValidation), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "lab", dst.Name)
		})
	}
}

func TestNewBaseDefaults(t *testing.T) {
	b := newBase(nil, "test", 0)
	assert.NotNil(t, b.logger)
	assert.NotNil(t, b.validator)
	assert.Equal(t, int64(DefaultMaxRequestSize), b.maxRequestSize)
}

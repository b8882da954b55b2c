package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/anstrom/netsweep/internal/config"
	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/jobs"
	"github.com/anstrom/netsweep/internal/metrics"
	"github.com/anstrom/netsweep/internal/scanning"
	"github.com/anstrom/netsweep/internal/services"
)

const testAPIKey = "ns_testkey0123456789"

type MockSegments struct {
	mock.Mock
}

func (m *MockSegments) List(ctx context.Context) ([]db.NetworkSegment, error) {
	args := m.Called(ctx)
	segs, _ := args.Get(0).([]db.NetworkSegment)
	return segs, args.Error(1)
}

func (m *MockSegments) Create(ctx context.Context, in services.CreateSegmentInput) (*db.NetworkSegment, error) {
	args := m.Called(ctx, in)
	seg, _ := args.Get(0).(*db.NetworkSegment)
	return seg, args.Error(1)
}

func (m *MockSegments) Detail(ctx context.Context, id string) (*db.SegmentDetail, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*db.SegmentDetail)
	return d, args.Error(1)
}

func (m *MockSegments) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSegments) Stats(ctx context.Context) (*db.Stats, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*db.Stats)
	return s, args.Error(1)
}

type MockScans struct {
	mock.Mock
}

func (m *MockScans) StartSweep(ctx context.Context, segmentID string) (jobs.Job, error) {
	args := m.Called(ctx, segmentID)
	return args.Get(0).(jobs.Job), args.Error(1)
}

func (m *MockScans) StartHostProbe(ctx context.Context, segmentID, addr string, ports scanning.PortRange) (jobs.Job, error) {
	args := m.Called(ctx, segmentID, addr, ports)
	return args.Get(0).(jobs.Job), args.Error(1)
}

func (m *MockScans) StartAdhocProbe(ctx context.Context, addr string, ports scanning.PortRange) (jobs.Job, error) {
	args := m.Called(ctx, addr, ports)
	return args.Get(0).(jobs.Job), args.Error(1)
}

func (m *MockScans) QuickCheck(ctx context.Context, addrs []string) ([]db.HostRecord, error) {
	args := m.Called(ctx, addrs)
	hosts, _ := args.Get(0).([]db.HostRecord)
	return hosts, args.Error(1)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	server   *Server
	segments *MockSegments
	scans    *MockScans
	tracker  *jobs.Tracker
}

func createTestConfig() *config.Config {
	cfg := config.Default()
	cfg.API.ListenAddr = "127.0.0.1"
	cfg.API.Port = 0
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	ts := &testServer{
		segments: &MockSegments{},
		scans:    &MockScans{},
		tracker:  jobs.NewTracker(),
	}
	srv, err := New(cfg, Dependencies{
		Segments:    ts.segments,
		Scans:       ts.scans,
		Jobs:        ts.tracker,
		Storage:     pingFunc(func(context.Context) error { return nil }),
		NmapVersion: func(context.Context) string { return "" },
		Metrics:     metrics.NewPrometheusMetrics(),
	})
	require.NoError(t, err)
	ts.server = srv
	return ts
}

func (ts *testServer) do(method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func TestNew(t *testing.T) {
	deps := Dependencies{
		Segments: &MockSegments{},
		Scans:    &MockScans{},
		Jobs:     jobs.NewTracker(),
	}

	t.Run("nil config", func(t *testing.T) {
		_, err := New(nil, deps)
		assert.Error(t, err)
	})

	t.Run("missing services", func(t *testing.T) {
		_, err := New(createTestConfig(), Dependencies{Segments: &MockSegments{}})
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := createTestConfig()
		cfg.API.ShutdownTimeout = 0
		srv, err := New(cfg, deps)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:0", srv.GetAddress())
		assert.Equal(t, defaultShutdownTimeout, srv.shutdownTimeout)
		assert.NotNil(t, srv.deps.Metrics)
		assert.NotNil(t, srv.GetRouter())
	})
}

func TestRoutes(t *testing.T) {
	ts := newTestServer(t, createTestConfig())
	ts.segments.On("List", mock.Anything).Return([]db.NetworkSegment{{ID: "s1", Name: "lab", CIDR: "10.0.0.0/24"}}, nil)
	ts.segments.On("Stats", mock.Anything).Return(&db.Stats{TotalNetworks: 1}, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/api/v1/health", http.StatusOK},
		{"version", http.MethodGet, "/api/v1/version", http.StatusOK},
		{"capabilities", http.MethodGet, "/api/v1/capabilities", http.StatusOK},
		{"segments", http.MethodGet, "/api/v1/segments", http.StatusOK},
		{"stats", http.MethodGet, "/api/v1/stats", http.StatusOK},
		{"jobs", http.MethodGet, "/api/v1/jobs", http.StatusOK},
		{"job", http.MethodGet, "/api/v1/jobs/unknown", http.StatusOK},
		{"index", http.MethodGet, "/", http.StatusOK},
		{"docs redirect", http.MethodGet, "/docs", http.StatusMovedPermanently},
		{"unknown route", http.MethodGet, "/api/v1/nothing", http.StatusNotFound},
		{"wrong method", http.MethodPut, "/api/v1/stats", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(tt.method, tt.path, nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			// router middleware only runs on matched routes
			if w.Code < http.StatusBadRequest {
				assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			}
		})
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	ts := newTestServer(t, createTestConfig())

	w := ts.do(http.MethodGet, "/api/v1/nothing", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Not Found", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, createTestConfig())
	ts.do(http.MethodGet, "/api/v1/health", nil)

	w := ts.do(http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "netsweep_api_requests_total")
}

func TestAuthentication(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := createTestConfig()
	cfg.API.APIKeys = []string{string(hash)}
	ts := newTestServer(t, cfg)
	ts.segments.On("List", mock.Anything).Return([]db.NetworkSegment{}, nil)

	tests := []struct {
		name       string
		path       string
		header     http.Header
		wantStatus int
	}{
		{"health is public", "/api/v1/health", nil, http.StatusOK},
		{"version is public", "/api/v1/version", nil, http.StatusOK},
		{"missing key", "/api/v1/segments", nil, http.StatusUnauthorized},
		{"wrong key", "/api/v1/segments", http.Header{"X-Api-Key": {"ns_wrongkey0123456789"}}, http.StatusUnauthorized},
		{"header key", "/api/v1/segments", http.Header{"X-Api-Key": {testAPIKey}}, http.StatusOK},
		{"bearer key", "/api/v1/segments", http.Header{"Authorization": {"Bearer " + testAPIKey}}, http.StatusOK},
		{"metrics outside api", "/metrics", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodGet, tt.path, tt.header)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestCORS(t *testing.T) {
	t.Run("preflight answered when enabled", func(t *testing.T) {
		cfg := createTestConfig()
		cfg.API.CORS.Enabled = true
		cfg.API.CORS.AllowedOrigins = []string{"https://ui.example.com"}
		ts := newTestServer(t, cfg)

		w := ts.do(http.MethodOptions, "/api/v1/segments", http.Header{
			"Origin":                        {"https://ui.example.com"},
			"Access-Control-Request-Method": {http.MethodPost},
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://ui.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no headers when disabled", func(t *testing.T) {
		ts := newTestServer(t, createTestConfig())
		ts.segments.On("List", mock.Anything).Return([]db.NetworkSegment{}, nil)

		w := ts.do(http.MethodGet, "/api/v1/segments", http.Header{"Origin": {"https://ui.example.com"}})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCheckOrigin(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.CORS.Enabled = true
	cfg.API.CORS.AllowedOrigins = []string{"https://ui.example.com"}
	ts := newTestServer(t, cfg)

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://example.com", true},
		{"https://ui.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/jobs/x/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, ts.server.checkOrigin(req))
		})
	}
}

func TestServeAndStop(t *testing.T) {
	ts := newTestServer(t, createTestConfig())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.server.Serve(ctx, listener) }()

	url := "http://" + listener.Addr().String() + "/api/v1/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:gosec,noctx // test URL
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = http.Get(url) //nolint:gosec,noctx // test URL
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "refused") || strings.Contains(err.Error(), "connect"))
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netsweep/internal/jobs"
)

func jobRouter(tracker *jobs.Tracker) *mux.Router {
	h := NewJobHandler(tracker, createTestLogger(), nil)
	r := mux.NewRouter()
	r.HandleFunc("/jobs", h.ListJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{key}", h.GetJob).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{key}/ws", h.StreamJob).Methods(http.MethodGet)
	return r
}

func TestGetJob(t *testing.T) {
	tracker := jobs.NewTracker()
	router := jobRouter(tracker)

	t.Run("unknown key is not started", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/jobs/nope", "")
		require.Equal(t, http.StatusOK, w.Code)

		var job jobs.Job
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
		assert.Equal(t, jobs.StateNotStarted, job.State)
		assert.Equal(t, "nope", job.Key)
	})

	t.Run("host probe key", func(t *testing.T) {
		key := jobs.HostKey("seg-1", "10.0.0.5")
		tracker.Start(key, jobs.KindProbe)
		tracker.Progress(key, 1, 4)

		w := serve(router, http.MethodGet, "/jobs/"+key, "")
		require.Equal(t, http.StatusOK, w.Code)

		var job jobs.Job
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
		assert.Equal(t, jobs.StateScanning, job.State)
		assert.Equal(t, 25, job.Progress)
	})
}

func TestListJobs(t *testing.T) {
	tracker := jobs.NewTracker()
	tracker.Start("seg-a", jobs.KindSweep)
	tracker.Start("seg-b", jobs.KindSweep)
	require.NoError(t, tracker.Complete("seg-b", nil))
	tracker.Start("token", jobs.KindAdhoc)
	router := jobRouter(tracker)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"seg-a", "seg-b", "token"}},
		{"by status", "?status=scanning", []string{"seg-a", "token"}},
		{"by kind", "?kind=sweep", []string{"seg-a", "seg-b"}},
		{"both", "?kind=sweep&status=completed", []string{"seg-b"}},
		{"no match", "?kind=probe", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodGet, "/jobs"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)

			var resp JobListResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			keys := make([]string, 0, len(resp.Jobs))
			for _, j := range resp.Jobs {
				keys = append(keys, j.Key)
			}
			assert.Equal(t, tt.want, keys)
			assert.Equal(t, len(tt.want), resp.Total)
		})
	}
}

func readJobFrame(t *testing.T, conn *websocket.Conn) jobs.Job {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg struct {
		Type string   `json:"type"`
		Data jobs.Job `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageJob, msg.Type)
	return msg.Data
}

func TestStreamJob(t *testing.T) {
	tracker := jobs.NewTracker()
	tracker.Start("seg-1", jobs.KindSweep)

	server := httptest.NewServer(jobRouter(tracker))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/jobs/seg-1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	first := readJobFrame(t, conn)
	assert.Equal(t, jobs.StateScanning, first.State)

	tracker.Progress("seg-1", 2, 4)
	progress := readJobFrame(t, conn)
	assert.Equal(t, 50, progress.Progress)

	require.NoError(t, tracker.Complete("seg-1", map[string]int{"active": 3}))
	final := readJobFrame(t, conn)
	assert.Equal(t, jobs.StateCompleted, final.State)

	// the server closes the stream after the terminal frame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestStreamJobAlreadyFinished(t *testing.T) {
	tracker := jobs.NewTracker()
	tracker.Start("seg-1", jobs.KindSweep)
	require.NoError(t, tracker.Fail("seg-1", "nmap exited"))

	server := httptest.NewServer(jobRouter(tracker))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/jobs/seg-1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	job := readJobFrame(t, conn)
	assert.Equal(t, jobs.StateError, job.State)
	assert.Equal(t, "nmap exited", job.Error)
}

func TestStreamJobRequiresUpgrade(t *testing.T) {
	router := jobRouter(jobs.NewTracker())
	w := serve(router, http.MethodGet, "/jobs/seg-1/ws", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

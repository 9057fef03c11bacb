package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/labjacker/labjacker/controller/status"
)

func newTestController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	cfg.Database = filepath.Join(t.TempDir(), "test.db")
	cfg.DevMode = true
	c, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(c.Stop)
	return c
}

func TestConnectAndToggleValve(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	require.NoError(t, c.Connect())

	info, connected := c.Connected()
	assert.True(t, connected)
	assert.Equal(t, "U3-SIM", info.Name)

	st, err := c.ToggleValve(2)
	require.NoError(t, err)
	assert.Equal(t, status.Open, st)
	assert.Equal(t, status.Open, c.Status().Valves[1])

	st, err = c.ToggleValve(2)
	require.NoError(t, err)
	assert.Equal(t, status.Closed, st)

	_, err = c.ToggleValve(9)
	assert.Error(t, err)
}

func TestToggleValveRejectedDuringRun(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	require.NoError(t, c.Connect())

	c.store.SetRunning(true)
	_, err := c.ToggleValve(1)
	assert.ErrorIs(t, err, ErrSequenceRunning)
}

func TestSettingsBootstrapAndUpdate(t *testing.T) {
	c := newTestController(t, DefaultConfig())

	s, err := c.Settings()
	require.NoError(t, err)
	assert.Equal(t, "sample_name", s.SampleName)
	assert.Equal(t, 180, s.StepInterval)
	assert.Equal(t, 6, s.LoopCount)

	s.SampleName = "batch-7"
	s.StepInterval = 30
	require.NoError(t, c.UpdateSettings(s))

	got, err := c.Settings()
	require.NoError(t, err)
	assert.Equal(t, "batch-7", got.SampleName)
	assert.Equal(t, 30, got.StepInterval)
}

func TestActivityLogIsCapped(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	for i := 0; i < maxLogEntries+50; i++ {
		c.appendLog("entry")
	}
	assert.Len(t, c.Logs(), maxLogEntries)
}

func TestAPIStatusAndSequenceState(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	require.NoError(t, c.Connect())
	r := mux.NewRouter()
	c.LoadAPI(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var snap status.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, status.Closed, snap.Valves[0])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/sequence", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var seq map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &seq))
	assert.Equal(t, "idle", seq["state"])
}

func TestAPIValveToggle(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	require.NoError(t, c.Connect())
	r := mux.NewRouter()
	c.LoadAPI(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/valves/3", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Open")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/valves/nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIParamAnswerWithoutPendingRequest(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	r := mux.NewRouter()
	c.LoadAPI(r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/sequence/params/sample_name",
		strings.NewReader(`{"value":"s1"}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/sequence/pending", nil))
	assert.Contains(t, w.Body.String(), `"pending":false`)
}

func TestAPIBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Auth = AuthConfig{User: "operator", Password: string(hash)}
	c := newTestController(t, cfg)
	r := mux.NewRouter()
	c.LoadAPI(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/status", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/status", nil)
	req.SetBasicAuth("operator", "secret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/status", nil)
	req.SetBasicAuth("operator", "wrong")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPISettingsValidation(t *testing.T) {
	c := newTestController(t, DefaultConfig())
	r := mux.NewRouter()
	c.LoadAPI(r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/settings",
		strings.NewReader(`{"sample_name":"s1","step_interval":0,"loop_count":6}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("PUT", "/api/settings",
		strings.NewReader(`{"sample_name":"s1","step_interval":60,"loop_count":2}`))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	s, err := c.Settings()
	require.NoError(t, err)
	assert.Equal(t, 60, s.StepInterval)
}

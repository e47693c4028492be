package main

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/config"
	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
	"github.com/COVIDWarriors/CWarriors-Covid19/runlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Station = "C"
	cfg.StationC.NumSamples = 8
	cfg.Logging.Dir = t.TempDir()
	cfg.DataDir = t.TempDir()
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, store *runlog.Store) *httptest.Server {
	t.Helper()
	a, err := newAPI(cfg, store, zap.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(a)
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return srv
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestAPI_Run(t *testing.T) {
	cfg := testConfig(t)
	store, err := runlog.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()
	srv := newTestServer(t, cfg, store)

	resp, err := http.Post(srv.URL+"/api/run", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var runs []runlog.Run
	require.Eventually(t, func() bool {
		runs = nil
		return getJSON(t, srv.URL+"/api/runs", &runs) == http.StatusOK && len(runs) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "C", runs[0].Station)
	assert.Equal(t, 8, runs[0].Samples)
	assert.Empty(t, runs[0].Err)

	var steps []protocol.Result
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/runs/"+runs[0].ID.String(), &steps))
	assert.Len(t, steps, 3)

	logs, err := filepath.Glob(filepath.Join(cfg.Logging.Dir, "time_log_station_C_*"))
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `rnaprep_tips_used_total{mount="right"} 8`)
}

func TestAPI_RunNotFound(t *testing.T) {
	store, err := runlog.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()
	srv := newTestServer(t, testConfig(t), store)

	var steps []protocol.Result
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/runs/6ba7b810-9dad-11d1-80b4-00c04fd430c8", &steps))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/runs/nope", &steps))
}

func TestAPI_Resume(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)

	resp, err := http.Post(srv.URL+"/api/resume", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	req, err := http.NewRequest("DELETE", srv.URL+"/api/run", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_Plan(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)

	var steps []protocol.Result
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/plan", &steps))
	require.Len(t, steps, 3)
	assert.Equal(t, "Make MMIX", steps[0].Description)
	assert.True(t, steps[2].Execute)
}

func TestAPI_Probe(t *testing.T) {
	cfg := testConfig(t)
	srv := newTestServer(t, cfg, nil)

	resp, err := http.Post(srv.URL+"/api/probe", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var points []struct{ X, Y, Z float64 }
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&points))
	assert.Len(t, points, 5)

	_, err = os.Stat(filepath.Join(cfg.DataDir, meshFile))
	require.NoError(t, err)
	_, err = loadDeck(cfg.DataDir)
	assert.NoError(t, err)
}

func TestAPI_Data(t *testing.T) {
	cfg := testConfig(t)
	srv := newTestServer(t, cfg, nil)

	req, err := http.NewRequest("PUT", srv.URL+"/data/notes/run.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := ioutil.ReadFile(filepath.Join(cfg.DataDir, "notes", "run.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	resp, err = http.Get(srv.URL + "/data/notes/run.txt")
	require.NoError(t, err)
	body, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "hello", string(body))

	req, err = http.NewRequest("DELETE", srv.URL+"/data/notes/run.txt", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoFileExists(t, filepath.Join(cfg.DataDir, "notes", "run.txt"))
}

package server

import (
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lptsplit/lptsplit/internal/metrics"
	"github.com/lptsplit/lptsplit/internal/pipeline"
	"github.com/lptsplit/lptsplit/internal/printer"
	"github.com/lptsplit/lptsplit/internal/render"
	tlsx "github.com/lptsplit/lptsplit/internal/tls"
)

type staticStatus struct{ st pipeline.Status }

func (s staticStatus) Status() pipeline.Status { return s.st }

func setupRouter(t *testing.T, base string, st pipeline.Status, withMetrics bool) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(staticStatus{st}, base, withMetrics).Handler()
}

func doReq(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func runningStatus() pipeline.Status {
	started := time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)
	return pipeline.Status{
		Running: true,
		Job:     printer.Snapshot{Open: true, Path: "pdf/print-2022_01_02_03_04_05.pdf", StartedAt: started, Markers: 1, Lines: 12},
		Current: &render.JobRecord{Path: "pdf/print-2022_01_02_03_04_05.pdf", PID: 4711, StartedAt: started, Lines: 12, Bytes: 640},
		Offset:  2048,
		Lines:   40,
	}
}

func TestStatusReturnsSnapshot(t *testing.T) {
	h := setupRouter(t, "/api", runningStatus(), false)
	rec := doReq(t, h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got pipeline.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Running)
	assert.Equal(t, 1, got.Job.Markers)
	assert.Equal(t, int64(2048), got.Offset)
	require.NotNil(t, got.Current)
	assert.Equal(t, 4711, got.Current.PID)
}

func TestJobEndpoint(t *testing.T) {
	h := setupRouter(t, "", runningStatus(), false)
	rec := doReq(t, h, http.MethodGet, "/job")
	require.Equal(t, http.StatusOK, rec.Code)
	var jr render.JobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jr))
	assert.Equal(t, int64(640), jr.Bytes)

	idle := setupRouter(t, "", pipeline.Status{Running: true}, false)
	rec = doReq(t, idle, http.MethodGet, "/job")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := doReq(t, setupRouter(t, "/api/", runningStatus(), false), http.MethodGet, "/api/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	stopped := pipeline.Status{Running: false, Error: "read printer stream: stream decode error"}
	rec = doReq(t, setupRouter(t, "/api", stopped, false), http.MethodGet, "/api/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "decode")
}

func TestNoControlEndpoints(t *testing.T) {
	h := setupRouter(t, "/api", runningStatus(), false)
	for _, p := range []string{"/api/start", "/api/stop", "/api/status"} {
		rec := doReq(t, h, http.MethodPost, p)
		assert.NotEqual(t, http.StatusOK, rec.Code, p)
	}
}

func TestMetricsMountedWhenEnabled(t *testing.T) {
	_ = metrics.Register(prometheus.DefaultRegisterer)
	rec := doReq(t, setupRouter(t, "/api", runningStatus(), true), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doReq(t, setupRouter(t, "/api", runningStatus(), false), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewServerServes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv, err := NewServer("127.0.0.1:0", "/api", staticStatus{runningStatus()}, false, nil)
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	resp, err := http.Get("http://" + srv.Addr + "/api/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(b))
}

func TestNewServerTLS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tlsCfg, err := tlsx.Setup(tlsx.Config{Enabled: true, Dir: t.TempDir(), AutoGenerate: true})
	require.NoError(t, err)
	srv, err := NewServer("127.0.0.1:0", "/api", staticStatus{runningStatus()}, false, tlsCfg)
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 self-signed test certificate
	}}
	resp, err := client.Get("https://" + srv.Addr + "/api/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewServerBindError(t *testing.T) {
	_, err := NewServer("256.0.0.1:bad", "", staticStatus{}, false, nil)
	assert.Error(t, err)
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{"": "", "/": "", "api": "/api", "/api/": "/api", " /x/y/ ": "/x/y"}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeBase(in), in)
	}
}

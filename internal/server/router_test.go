//go:build !windows

package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vigilproc/vigil/internal/heartbeat"
	"github.com/vigilproc/vigil/internal/pidfile"
	"github.com/vigilproc/vigil/internal/status"
)

func setupRouter(t *testing.T, base string, reporter *status.Reporter) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(reporter, base).Handler()
}

func doReq(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func idleReporter(t *testing.T) *status.Reporter {
	t.Helper()
	dir := t.TempDir()
	return status.NewReporter(filepath.Join(dir, "vigil.pid"), filepath.Join(dir, "metrics.json"), nil)
}

func liveReporter(t *testing.T) (*status.Reporter, func()) {
	t.Helper()
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "vigil.pid")
	metricsPath := filepath.Join(dir, "metrics.json")
	if err := pidfile.New(pidPath).Write(os.Getpid()); err != nil {
		t.Fatal(err)
	}
	mon := heartbeat.NewMonitor(metricsPath, time.Hour)
	if err := mon.Start(os.Getpid()); err != nil {
		t.Fatal(err)
	}
	return status.NewReporter(pidPath, metricsPath, nil), mon.Stop
}

func TestStatusEndpointIdle(t *testing.T) {
	h := setupRouter(t, "/vigil", idleReporter(t))
	rec := doReq(t, h, "/vigil/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap status.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Running {
		t.Fatal("idle status reported running")
	}
}

func TestStatusEndpointRunning(t *testing.T) {
	reporter, stop := liveReporter(t)
	defer stop()
	h := setupRouter(t, "", reporter)

	rec := doReq(t, h, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var snap status.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if !snap.Running || snap.PID != os.Getpid() {
		t.Fatalf("snapshot = %+v, want running with own pid", snap)
	}
}

func TestHealthEndpointUnavailableWhenIdle(t *testing.T) {
	h := setupRouter(t, "", idleReporter(t))
	rec := doReq(t, h, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHealthEndpointOKWhenHealthy(t *testing.T) {
	reporter, stop := liveReporter(t)
	defer stop()
	h := setupRouter(t, "", reporter)

	rec := doReq(t, h, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res heartbeat.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Status == heartbeat.StatusCritical {
		t.Fatalf("status = %s for a live process", res.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := setupRouter(t, "", idleReporter(t))
	rec := doReq(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewServerLogsBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ln.Close() }()

	var out syncBuffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&out, nil)))
	defer slog.SetDefault(prev)

	srv := NewServer(ln.Addr().String(), "", idleReporter(t))
	defer func() { _ = srv.Close() }()

	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(out.String(), "status api server failed") {
		if time.Now().After(deadline) {
			t.Fatal("bind failure was never logged")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"vigil":   "/vigil",
		"/vigil":  "/vigil",
		"/vigil/": "/vigil",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Errorf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}

package vigil

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/vigilproc/vigil/internal/config"
	"github.com/vigilproc/vigil/internal/heartbeat"
	"github.com/vigilproc/vigil/internal/history"
	"github.com/vigilproc/vigil/internal/history/factory"
	"github.com/vigilproc/vigil/internal/metrics"
	"github.com/vigilproc/vigil/internal/pidfile"
	"github.com/vigilproc/vigil/internal/restart"
	iapi "github.com/vigilproc/vigil/internal/server"
	"github.com/vigilproc/vigil/internal/status"
	"github.com/vigilproc/vigil/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Options = supervisor.Options

type Workload = supervisor.Workload

type Snapshot = status.Snapshot

type HealthResult = heartbeat.Result

type HealthStatus = heartbeat.Status

type Liveness = pidfile.Liveness

type RestartInfo = restart.Info

type HistorySink = history.Sink

// Error sentinels for embedders branching with errors.Is.
var (
	ErrAlreadyRunning   = supervisor.ErrAlreadyRunning
	ErrSignalPermission = supervisor.ErrSignalPermission
	ErrDetachFailed     = supervisor.ErrDetachFailed
	ErrRestartLimit     = supervisor.ErrRestartLimit
)

// Supervisor is a thin facade over internal/supervisor.Supervisor.
// It provides a stable public API for embedding.

type Supervisor struct{ inner *supervisor.Supervisor }

func New(opts Options) *Supervisor {
	return &Supervisor{inner: supervisor.New(opts)}
}

func (s *Supervisor) Run(ctx context.Context, w Workload) error { return s.inner.Run(ctx, w) }
func (s *Supervisor) Stop(timeout time.Duration) error          { return s.inner.Stop(timeout) }
func (s *Supervisor) Restart(ctx context.Context, w Workload) error {
	return s.inner.Restart(ctx, w)
}
func (s *Supervisor) IsRunning() bool { return s.inner.IsRunning() }

// Status builds the read-only aggregate snapshot for the supervised
// process recorded at pidPath/metricsPath. It works from any process.
func Status(pidPath, metricsPath string) Snapshot {
	return status.NewReporter(pidPath, metricsPath, nil).Snapshot()
}

// Health evaluates the health verdict for the metrics document at path.
func Health(metricsPath string) HealthResult {
	m, err := heartbeat.Load(metricsPath)
	if err != nil {
		m = nil
	}
	return heartbeat.Evaluate(m, time.Now())
}

func LoadConfig(path string) (Config, error) { return cfg.Load(path) }

func DefaultConfig() Config { return cfg.Default() }

// NewHTTPServer starts an HTTP server exposing the read-only status API.
func NewHTTPServer(addr, basePath, pidPath, metricsPath string) *http.Server {
	return iapi.NewServer(addr, basePath, status.NewReporter(pidPath, metricsPath, nil))
}

// NewHistorySink builds an export sink from a DSN
// (sqlite/postgres/clickhouse).
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

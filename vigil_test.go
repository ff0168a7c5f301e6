//go:build !windows

package vigil

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vigilproc/vigil/internal/heartbeat"
)

func facadeOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		PIDFile:           filepath.Join(dir, "vigil.pid"),
		MetricsFile:       filepath.Join(dir, "metrics.json"),
		HeartbeatInterval: time.Hour,
		StopTimeout:       2 * time.Second,
	}
}

func TestFacadeRunAndStatus(t *testing.T) {
	opts := facadeOptions(t)
	sup := New(opts)

	var snap Snapshot
	err := sup.Run(context.Background(), func(ctx context.Context) error {
		snap = Status(opts.PIDFile, opts.MetricsFile)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !snap.Running {
		t.Fatal("status did not observe the running supervisor")
	}
	if after := Status(opts.PIDFile, opts.MetricsFile); after.Running {
		t.Fatal("status still running after exit")
	}
}

func TestFacadeAlreadyRunningSentinel(t *testing.T) {
	opts := facadeOptions(t)
	sup := New(opts)

	err := sup.Run(context.Background(), func(ctx context.Context) error {
		return New(opts).Run(ctx, func(context.Context) error { return nil })
	})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
}

func TestFacadeHealthWithoutMetrics(t *testing.T) {
	res := Health(filepath.Join(t.TempDir(), "missing.json"))
	if res.Status != heartbeat.StatusCritical {
		t.Fatalf("Status = %s, want critical", res.Status)
	}
}

func TestFacadeStopIdle(t *testing.T) {
	sup := New(facadeOptions(t))
	if err := sup.Stop(time.Second); err != nil {
		t.Fatalf("Stop on idle: %v", err)
	}
}

func TestFacadeDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PIDFile == "" || cfg.MetricsFile == "" {
		t.Fatal("default config missing derived paths")
	}
	if cfg.MaxRestarts <= 0 || cfg.RestartWindow <= 0 {
		t.Fatal("default restart policy not set")
	}
}

func TestFacadeHistorySinkDSN(t *testing.T) {
	sink, err := NewHistorySink("sqlite://:memory:")
	if err != nil {
		t.Fatalf("NewHistorySink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	if _, err := NewHistorySink("redis://nope"); err == nil {
		t.Fatal("unsupported DSN accepted")
	}
}

// Package supervisor owns the lifecycle of the supervised workload:
// liveness registration, signal-driven shutdown, health monitoring, and
// governed automatic restarts.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vigilproc/vigil/internal/heartbeat"
	"github.com/vigilproc/vigil/internal/history"
	"github.com/vigilproc/vigil/internal/metrics"
	"github.com/vigilproc/vigil/internal/pidfile"
	"github.com/vigilproc/vigil/internal/restart"
)

const (
	// Grace after SIGKILL before the registry is force-cleared. Together
	// with the configured timeout this bounds Stop deterministically.
	killGrace = time.Second

	defaultRestartPause = time.Second
)

// Workload is the long-running function under supervision. It should
// return promptly once ctx is canceled.
type Workload func(ctx context.Context) error

// Options configures a Supervisor.
type Options struct {
	PIDFile           string
	MetricsFile       string
	HeartbeatInterval time.Duration
	StopTimeout       time.Duration
	MaxRestarts       int
	RestartWindow     time.Duration
	AutoRestart       bool
	// RestartPause is the grace between a workload failure and its
	// automatic restart (default 1s).
	RestartPause time.Duration
	History      *history.Recorder
}

// Supervisor ties the liveness registry, health monitor, and restart
// governor together around one workload.
type Supervisor struct {
	reg  pidfile.Registry
	mon  *heartbeat.Monitor
	gov  *restart.Governor
	opts Options
}

func New(opts Options) *Supervisor {
	if opts.RestartPause <= 0 {
		opts.RestartPause = defaultRestartPause
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 10 * time.Second
	}
	return &Supervisor{
		reg:  pidfile.New(opts.PIDFile),
		mon:  heartbeat.NewMonitor(opts.MetricsFile, opts.HeartbeatInterval),
		gov:  restart.NewGovernor(opts.MaxRestarts, opts.RestartWindow),
		opts: opts,
	}
}

func (s *Supervisor) Registry() pidfile.Registry  { return s.reg }
func (s *Supervisor) Monitor() *heartbeat.Monitor { return s.mon }
func (s *Supervisor) Governor() *restart.Governor { return s.gov }
func (s *Supervisor) IsRunning() bool             { return s.reg.IsRunning() }
func (s *Supervisor) StopTimeout() time.Duration  { return s.opts.StopTimeout }

// Run executes the workload under supervision in the calling process.
// The liveness record is written before the monitor starts, and both are
// torn down on every exit path: normal return, workload error, or
// termination signal. Signal handling is channel-based; no cleanup runs
// inside an OS signal handler.
func (s *Supervisor) Run(ctx context.Context, w Workload) error {
	probe, err := s.reg.Probe()
	if err != nil {
		return err
	}
	if probe.State != pidfile.Absent {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, probe.PID)
	}

	pid := os.Getpid()
	if err := s.reg.Write(pid); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("termination signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.mon.Start(pid); err != nil {
		_ = s.reg.Remove()
		return err
	}
	defer func() {
		s.mon.Stop()
		if err := s.reg.Remove(); err != nil {
			slog.Warn("failed to clear liveness record", "error", err)
		}
		metrics.IncStop()
		s.opts.History.Record(context.Background(), history.EventStop, pid, "")
		slog.Info("supervision ended", "pid", pid)
	}()

	slog.Info("supervision started", "pid", pid)
	metrics.IncStart()
	s.opts.History.Record(ctx, history.EventStart, pid, "")

	for {
		err := w(ctx)
		if ctx.Err() != nil {
			// Signal-initiated shutdown is a clean exit.
			return nil
		}
		if err == nil {
			return nil
		}

		s.mon.RecordError(err.Error())
		metrics.IncError()
		s.opts.History.Record(ctx, history.EventError, pid, err.Error())
		if !s.opts.AutoRestart {
			return err
		}
		if !s.gov.CanRestart() {
			info := s.gov.Info()
			slog.Error("restart limit reached, giving up",
				"recent_restarts", info.RecentRestarts, "window_seconds", info.WindowSeconds)
			return fmt.Errorf("%w after workload error: %v", ErrRestartLimit, err)
		}
		s.gov.RecordRestart()
		metrics.IncRestart()
		s.opts.History.Record(ctx, history.EventRestart, pid, "")
		slog.Warn("restarting workload", "error", err,
			"recent_restarts", s.gov.Info().RecentRestarts)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.opts.RestartPause):
		}
	}
}

// Stop terminates the supervised process from outside: graceful signal
// first, then a poll at one-second intervals up to timeout, then forced
// kill plus a short grace. Stopping an absent instance is success.
func (s *Supervisor) Stop(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.opts.StopTimeout
	}
	probe, err := s.reg.Probe()
	if err != nil {
		return err
	}
	if probe.State == pidfile.Absent {
		slog.Debug("stop requested but nothing is running")
		return nil
	}
	pid := probe.PID

	slog.Info("stopping supervised process", "pid", pid, "timeout", timeout)
	if err := terminate(pid); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			_ = s.reg.Remove()
			return nil
		}
		if errors.Is(err, syscall.EPERM) {
			return fmt.Errorf("%w (pid %d)", ErrSignalPermission, pid)
		}
		return err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !s.reg.IsRunning() {
			slog.Info("supervised process exited gracefully", "pid", pid)
			return nil
		}
		time.Sleep(time.Second)
	}

	slog.Warn("graceful stop timed out, sending kill", "pid", pid)
	if err := kill(pid); err != nil && !errors.Is(err, syscall.ESRCH) {
		if errors.Is(err, syscall.EPERM) {
			return fmt.Errorf("%w (pid %d)", ErrSignalPermission, pid)
		}
		return err
	}
	time.Sleep(killGrace)
	_ = s.reg.Remove()

	if state, _ := pidfile.ProbePID(pid); state == pidfile.Alive {
		return fmt.Errorf("process %d still alive after kill", pid)
	}
	return nil
}

// Restart stops a running instance (propagating failure), waits a short
// grace, and runs the workload again in the calling process.
func (s *Supervisor) Restart(ctx context.Context, w Workload) error {
	if err := s.Stop(s.opts.StopTimeout); err != nil {
		return fmt.Errorf("stop before restart: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second):
	}
	return s.Run(ctx, w)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vigilproc/vigil/internal/config"
	"github.com/vigilproc/vigil/internal/heartbeat"
	"github.com/vigilproc/vigil/internal/history"
	"github.com/vigilproc/vigil/internal/history/factory"
	"github.com/vigilproc/vigil/internal/logger"
	"github.com/vigilproc/vigil/internal/metrics"
	"github.com/vigilproc/vigil/internal/pidfile"
	"github.com/vigilproc/vigil/internal/server"
	"github.com/vigilproc/vigil/internal/status"
	"github.com/vigilproc/vigil/internal/supervisor"

	"github.com/prometheus/client_golang/prometheus"
)

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// StartFlags holds flags for the start and restart commands.
type StartFlags struct {
	Daemon bool
	// Supervised marks the re-invoked child of --daemon. Hidden.
	Supervised bool
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	startFlags := &StartFlags{}
	restartFlags := &StartFlags{}
	var stopTimeout time.Duration
	var statusJSON bool

	root := &cobra.Command{
		Use:           "vigil",
		Short:         "vigil supervises a long-running service process",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to TOML config file")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the supervised service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(globalFlags, startFlags)
		},
	}
	startCmd.Flags().BoolVar(&startFlags.Daemon, "daemon", false, "detach and run in the background")
	startCmd.Flags().BoolVar(&startFlags.Supervised, "supervised", false, "")
	_ = startCmd.Flags().MarkHidden("supervised")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the supervised service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(globalFlags, stopTimeout)
		},
	}
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 0, "grace period before forced kill (default from config)")

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the supervised service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runStop(globalFlags, stopTimeout); err != nil {
				return err
			}
			time.Sleep(time.Second)
			return runStart(globalFlags, restartFlags)
		},
	}
	restartCmd.Flags().BoolVar(&restartFlags.Daemon, "daemon", true, "detach and run in the background")
	restartCmd.Flags().DurationVar(&stopTimeout, "timeout", 0, "grace period before forced kill (default from config)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the supervision status snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(globalFlags, statusJSON)
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit the snapshot as JSON")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Show the health verdict (exit 1 when critical)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(globalFlags)
		},
	}

	root.AddCommand(startCmd, stopCmd, restartCmd, statusCmd, healthCmd)
	return root
}

func loadConfig(g *GlobalFlags) (config.Config, error) {
	if g.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(g.ConfigPath)
}

func runStart(g *GlobalFlags, f *StartFlags) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	if f.Daemon && !f.Supervised {
		// The child would detect a live instance too, but its error only
		// reaches the bootstrap log; the caller must see it here.
		probe, err := pidfile.New(cfg.PIDFile).Probe()
		if err != nil {
			return err
		}
		if probe.State != pidfile.Absent {
			return fmt.Errorf("already running: %w (pid %d)", supervisor.ErrAlreadyRunning, probe.PID)
		}
		pid, err := spawnDaemon(g.ConfigPath, cfg.Log.Dir)
		if err != nil {
			return err
		}
		fmt.Printf("vigil daemon started (pid %d)\n", pid)
		return nil
	}

	if f.Supervised {
		closer, err := logger.SetupDaemon(logger.Options{
			Level:      cfg.Log.Level,
			Dir:        cfg.Log.Dir,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		})
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()
		daemonInit()
	} else {
		logger.SetupForeground(logger.Options{Level: cfg.Log.Level})
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	recorder := buildRecorder(cfg)
	defer recorder.Close()

	sup := supervisor.New(supervisor.Options{
		PIDFile:           cfg.PIDFile,
		MetricsFile:       cfg.MetricsFile,
		HeartbeatInterval: cfg.HeartbeatInterval,
		StopTimeout:       cfg.StopTimeout,
		MaxRestarts:       cfg.MaxRestarts,
		RestartWindow:     cfg.RestartWindow,
		AutoRestart:       cfg.AutoRestart,
		History:           recorder,
	})

	err = sup.Run(context.Background(), serviceWorkload(cfg, sup))
	if errors.Is(err, supervisor.ErrAlreadyRunning) {
		return fmt.Errorf("already running: %w", err)
	}
	return err
}

// serviceWorkload is the daemon's service loop: the read-only status API
// plus the Prometheus endpoint, alive until the context is canceled.
func serviceWorkload(cfg config.Config, sup *supervisor.Supervisor) supervisor.Workload {
	return func(ctx context.Context) error {
		if cfg.Listen == "" {
			<-ctx.Done()
			return nil
		}
		reporter := status.NewReporter(cfg.PIDFile, cfg.MetricsFile, sup.Governor())
		srv := server.NewServer(cfg.Listen, "", reporter)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func buildRecorder(cfg config.Config) *history.Recorder {
	if !cfg.History.Enabled {
		return history.NewRecorder()
	}
	var sinks []history.Sink
	for _, dsn := range cfg.History.DSNs {
		sink, err := factory.NewSinkFromDSN(dsn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: history sink skipped: %v\n", err)
			continue
		}
		sinks = append(sinks, sink)
	}
	return history.NewRecorder(sinks...)
}

func runStop(g *GlobalFlags, timeout time.Duration) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	logger.SetupForeground(logger.Options{Level: cfg.Log.Level})

	sup := supervisor.New(supervisor.Options{
		PIDFile:     cfg.PIDFile,
		MetricsFile: cfg.MetricsFile,
		StopTimeout: cfg.StopTimeout,
	})
	if !sup.IsRunning() {
		fmt.Println("vigil is not running")
		return nil
	}
	if err := sup.Stop(timeout); err != nil {
		if errors.Is(err, supervisor.ErrSignalPermission) {
			return fmt.Errorf("cannot stop: %w", err)
		}
		return err
	}
	fmt.Println("vigil stopped")
	return nil
}

func runStatus(g *GlobalFlags, asJSON bool) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	snap := status.NewReporter(cfg.PIDFile, cfg.MetricsFile, nil).Snapshot()

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Running", fmt.Sprintf("%t", snap.Running))
	table.Append("State", snap.State)
	if snap.Running {
		table.Append("PID", fmt.Sprintf("%d", snap.PID))
		if snap.Uptime != "" {
			table.Append("Uptime", snap.Uptime)
		}
		if snap.CPUPercent != nil {
			table.Append("CPU %", fmt.Sprintf("%.1f", *snap.CPUPercent))
		}
		if snap.MemoryMB != nil {
			table.Append("Memory MB", fmt.Sprintf("%.1f", *snap.MemoryMB))
		}
		if snap.Health != nil {
			table.Append("Health", string(snap.Health.Status))
			table.Append("Errors", fmt.Sprintf("%d", snap.Health.ErrorCount))
			if snap.Health.LastError != "" {
				table.Append("Last error", snap.Health.LastError)
			}
		}
	}
	table.Render()
	return nil
}

func runHealth(g *GlobalFlags) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	m, loadErr := heartbeat.Load(cfg.MetricsFile)
	if loadErr != nil {
		m = nil
	}
	res := heartbeat.Evaluate(m, time.Now())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if res.Status == heartbeat.StatusCritical {
		return errors.New("health: critical")
	}
	return nil
}

// Package status aggregates the on-disk supervision state into a single
// read-only snapshot. It runs in any process, not just the supervised
// one, and every field degrades independently: a missing metrics
// document or a failed resource sample leaves the rest of the snapshot
// intact.
package status

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/vigilproc/vigil/internal/heartbeat"
	"github.com/vigilproc/vigil/internal/pidfile"
	"github.com/vigilproc/vigil/internal/restart"
)

// Snapshot is the aggregate view of a supervised process at one moment.
type Snapshot struct {
	Running       bool              `json:"running"`
	State         string            `json:"state"`
	PID           int               `json:"pid,omitempty"`
	Uptime        string            `json:"uptime,omitempty"`
	UptimeSeconds *float64          `json:"uptime_seconds,omitempty"`
	CPUPercent    *float64          `json:"cpu_percent,omitempty"`
	MemoryMB      *float64          `json:"memory_mb,omitempty"`
	Health        *heartbeat.Result `json:"health,omitempty"`
	Restarts      *restart.Info     `json:"restarts,omitempty"`
}

// Reporter builds snapshots from the liveness registry and the metrics
// document. The governor is optional: status queried from an unrelated
// process has no in-memory restart history to report.
type Reporter struct {
	reg         pidfile.Registry
	metricsPath string
	gov         *restart.Governor
}

func NewReporter(pidPath, metricsPath string, gov *restart.Governor) *Reporter {
	return &Reporter{
		reg:         pidfile.New(pidPath),
		metricsPath: metricsPath,
		gov:         gov,
	}
}

// Snapshot collects the current state. It never mutates anything except
// through the registry's own stale-record self-healing, and it never
// fails outright: absent pieces of state are simply omitted.
func (r *Reporter) Snapshot() Snapshot {
	now := time.Now()
	probe, err := r.reg.Probe()

	snap := Snapshot{State: probe.State.String()}
	if err != nil || probe.State == pidfile.Absent {
		return snap
	}
	snap.Running = true
	snap.PID = probe.PID

	if secs, ok := processUptime(probe.PID, now); ok {
		snap.UptimeSeconds = &secs
		snap.Uptime = FormatUptime(secs)
	}
	snap.CPUPercent, snap.MemoryMB = heartbeat.SampleProcess(probe.PID)

	if m, err := heartbeat.Load(r.metricsPath); err == nil {
		res := heartbeat.Evaluate(m, now)
		snap.Health = &res
		// Prefer the monitor's own start time when the document has one.
		if !m.StartTime.IsZero() {
			secs := now.Sub(m.StartTime).Seconds()
			snap.UptimeSeconds = &secs
			snap.Uptime = FormatUptime(secs)
		}
	}

	if r.gov != nil {
		info := r.gov.Info()
		snap.Restarts = &info
	}
	return snap
}

// processUptime derives uptime from the kernel's process start time.
func processUptime(pid int, now time.Time) (float64, bool) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, false
	}
	ms, err := proc.CreateTime()
	if err != nil {
		return 0, false
	}
	secs := now.Sub(time.UnixMilli(ms)).Seconds()
	if secs < 0 {
		secs = 0
	}
	return secs, true
}

// FormatUptime renders seconds as HH:MM:SS, with hours unbounded.
func FormatUptime(seconds float64) string {
	total := int64(seconds)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

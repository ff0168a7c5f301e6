package heartbeat

import (
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/vigilproc/vigil/internal/pidfile"
)

// Status is the derived health verdict.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Warning thresholds. Boundary-exact values do not trigger a warning;
// the comparisons are strictly greater-than.
const (
	staleHeartbeatAfter = 5 * time.Minute
	warnErrorCount      = 10
	warnCPUPercent      = 90.0
	warnMemoryMB        = 1000.0
)

// Result is a derived health check. It is computed on demand and never
// persisted. Sampled fields are pointers: a sample that could not be
// taken stays nil instead of failing the whole check.
type Result struct {
	Timestamp     time.Time `json:"timestamp"`
	Status        Status    `json:"status"`
	CPUPercent    *float64  `json:"cpu_percent,omitempty"`
	MemoryMB      *float64  `json:"memory_mb,omitempty"`
	UptimeSeconds *float64  `json:"uptime_seconds,omitempty"`
	ErrorCount    int       `json:"error_count"`
	LastError     string    `json:"last_error,omitempty"`
}

// Evaluate computes the health verdict for a metrics document: critical
// when the document is missing or the pid cannot be confirmed to exist,
// warning when the heartbeat loop has stalled or resource thresholds are
// exceeded, healthy otherwise.
func Evaluate(m *Metrics, now time.Time) Result {
	if m == nil {
		return Result{Timestamp: now, Status: StatusCritical, LastError: "no metrics recorded"}
	}

	state, err := pidfile.ProbePID(m.PID)
	if err == nil && state == pidfile.Absent {
		return Result{
			Timestamp:  now,
			Status:     StatusCritical,
			ErrorCount: m.ErrorCount,
			LastError:  "process not found",
		}
	}

	if now.Sub(m.LastHeartbeat) > staleHeartbeatAfter {
		return Result{
			Timestamp:  now,
			Status:     StatusWarning,
			ErrorCount: m.ErrorCount,
			LastError:  "heartbeat stale",
		}
	}

	cpu, mem := SampleProcess(m.PID)
	return verdict(m, cpu, mem, now)
}

// verdict applies the warning thresholds to an already-sampled state.
func verdict(m *Metrics, cpu, memMB *float64, now time.Time) Result {
	uptime := now.Sub(m.StartTime).Seconds()
	res := Result{
		Timestamp:     now,
		Status:        StatusHealthy,
		CPUPercent:    cpu,
		MemoryMB:      memMB,
		UptimeSeconds: &uptime,
		ErrorCount:    m.ErrorCount,
		LastError:     m.LastError,
	}
	if m.ErrorCount > warnErrorCount {
		res.Status = StatusWarning
	}
	if cpu != nil && *cpu > warnCPUPercent {
		res.Status = StatusWarning
	}
	if memMB != nil && *memMB > warnMemoryMB {
		res.Status = StatusWarning
	}
	return res
}

// SampleProcess takes a best-effort CPU/memory sample for pid. CPU usage
// follows two-sample semantics: the very first sample taken against a
// process may read 0 or be unavailable, which is reported as-is rather
// than escalated. Either value may be nil when the probe fails, for
// example when the process vanished between liveness check and sampling.
func SampleProcess(pid int) (cpu, memMB *float64) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, nil
	}
	if v, err := proc.CPUPercent(); err == nil {
		cpu = &v
	}
	if mi, err := proc.MemoryInfo(); err == nil {
		mb := float64(mi.RSS) / 1024 / 1024
		memMB = &mb
	}
	return cpu, memMB
}

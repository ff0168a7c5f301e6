// Package heartbeat records liveness heartbeats and resource samples for
// the supervised process and derives a health verdict from them.
package heartbeat

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/vigilproc/vigil/internal/metrics"
)

const (
	DefaultInterval = 30 * time.Second

	// Pause after a fault inside the loop before trying again. The loop
	// must outlive any transient sampling failure.
	faultBackoff = 5 * time.Second

	stopJoinTimeout = 5 * time.Second
)

// Monitor runs the background heartbeat loop inside the supervised
// process. It is the single writer of the metrics document.
type Monitor struct {
	mu       sync.Mutex
	path     string
	interval time.Duration
	metrics  *Metrics
	stopCh   chan struct{}
	done     chan struct{}
	running  bool
}

func NewMonitor(path string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{path: path, interval: interval}
}

// Start attaches the monitor to pid and begins the heartbeat loop. An
// existing metrics document is loaded rather than reset so RestartCount
// carries forward across restarts of the same logical service, and is
// incremented to record the resume.
func (m *Monitor) Start(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	now := time.Now()
	if prev, err := Load(m.path); err == nil {
		prev.PID = pid
		prev.StartTime = now
		prev.LastHeartbeat = now
		prev.RestartCount++
		m.metrics = prev
		slog.Info("resuming process metrics", "pid", pid, "restart_count", prev.RestartCount)
	} else {
		if !os.IsNotExist(err) {
			slog.Warn("metrics document unreadable, starting fresh", "path", m.path, "error", err)
		}
		m.metrics = &Metrics{PID: pid, StartTime: now, LastHeartbeat: now}
	}
	if err := m.metrics.save(m.path); err != nil {
		return err
	}

	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true
	go m.loop(m.stopCh, m.done)
	return nil
}

// Stop ends the loop, waits for it with a bound, and deletes the metrics
// document so no stale metrics remain discoverable after supervision
// stops. A process killed without reaching Stop leaves the document
// behind, which is what lets the next attach resume the restart count.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		slog.Warn("heartbeat loop did not stop in time")
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove metrics document", "path", m.path, "error", err)
	}
}

// Beat updates the heartbeat timestamp and persists immediately.
func (m *Monitor) Beat() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metrics == nil {
		return nil
	}
	m.metrics.LastHeartbeat = time.Now()
	return m.metrics.save(m.path)
}

// RecordError increments the error count and persists immediately so the
// error is durable even if the process dies right after.
func (m *Monitor) RecordError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metrics == nil {
		return
	}
	m.metrics.ErrorCount++
	m.metrics.LastError = msg
	if err := m.metrics.save(m.path); err != nil {
		slog.Error("failed to persist error record", "error", err)
	}
	slog.Error("process error recorded", "message", msg, "error_count", m.metrics.ErrorCount)
}

// Snapshot returns a copy of the current in-memory document.
func (m *Monitor) Snapshot() (Metrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metrics == nil {
		return Metrics{}, false
	}
	return *m.metrics, true
}

// Health computes the verdict for the attached process.
func (m *Monitor) Health() Result {
	snap, ok := m.Snapshot()
	if !ok {
		return Evaluate(nil, time.Now())
	}
	return Evaluate(&snap, time.Now())
}

func (m *Monitor) loop(stopCh, done chan struct{}) {
	defer close(done)
	slog.Debug("heartbeat loop started", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := m.Beat(); err != nil {
				slog.Error("heartbeat persist failed", "error", err)
				m.RecordError(err.Error())
				select {
				case <-stopCh:
					return
				case <-time.After(faultBackoff):
				}
				continue
			}
			h := m.Health()
			metrics.SetHealthState(string(h.Status))
			metrics.SetResourceSample(h.CPUPercent, h.MemoryMB)
			if snap, ok := m.Snapshot(); ok {
				metrics.SetHeartbeatAge(time.Since(snap.LastHeartbeat).Seconds())
			}
			switch h.Status {
			case StatusWarning:
				slog.Warn("process health warning", "last_error", h.LastError, "error_count", h.ErrorCount)
			case StatusCritical:
				slog.Error("process health critical", "last_error", h.LastError)
			}
		}
	}
}

// Package restart bounds automatic restarts with a sliding time window:
// at most MaxRestarts restart events within any trailing Window.
package restart

import (
	"sync"
	"time"
)

const (
	DefaultMaxRestarts = 5
	DefaultWindow      = 5 * time.Minute
)

// Governor advises whether one more automatic restart is admissible.
// It only advises; the supervisor is responsible for honoring CanRestart
// before triggering a restart.
type Governor struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	history []time.Time

	now func() time.Time // test seam
}

func NewGovernor(maxRestarts int, window time.Duration) *Governor {
	if maxRestarts <= 0 {
		maxRestarts = DefaultMaxRestarts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Governor{max: maxRestarts, window: window, now: time.Now}
}

// prune drops entries older than the trailing window. Callers hold g.mu.
func (g *Governor) prune(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.history) && !g.history[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.history = append(g.history[:0], g.history[i:]...)
	}
}

// CanRestart reports whether the recent restart count is still below the
// limit.
func (g *Governor) CanRestart() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(g.now())
	return len(g.history) < g.max
}

// RecordRestart appends a restart event. Pruning happens here too, not
// only on reads, so the history stays bounded in a long-lived process.
func (g *Governor) RecordRestart() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.prune(now)
	g.history = append(g.history, now)
}

// Info is a point-in-time view of the governor state.
type Info struct {
	RecentRestarts int        `json:"recent_restarts"`
	MaxRestarts    int        `json:"max_restarts"`
	WindowSeconds  int        `json:"window_seconds"`
	CanRestart     bool       `json:"can_restart"`
	LastRestart    *time.Time `json:"last_restart,omitempty"`
}

func (g *Governor) Info() Info {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(g.now())
	info := Info{
		RecentRestarts: len(g.history),
		MaxRestarts:    g.max,
		WindowSeconds:  int(g.window / time.Second),
		CanRestart:     len(g.history) < g.max,
	}
	if n := len(g.history); n > 0 {
		last := g.history[n-1]
		info.LastRestart = &last
	}
	return info
}

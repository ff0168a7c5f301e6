package restart

import (
	"testing"
	"time"
)

func TestAdmissionWindow(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	clock := base
	g := NewGovernor(5, 300*time.Second)
	g.now = func() time.Time { return clock }

	// Restarts at t=0,10,20,30,40.
	for _, off := range []int{0, 10, 20, 30, 40} {
		clock = base.Add(time.Duration(off) * time.Second)
		if !g.CanRestart() {
			t.Fatalf("restart %ds should be admissible", off)
		}
		g.RecordRestart()
	}

	clock = base.Add(45 * time.Second)
	if g.CanRestart() {
		t.Fatalf("sixth restart within window must be declined")
	}

	// At t=301 the t=0 entry has aged out.
	clock = base.Add(301 * time.Second)
	if !g.CanRestart() {
		t.Fatalf("restart should be admissible after oldest entry ages out")
	}
}

func TestRecordPrunesHistory(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	clock := base
	g := NewGovernor(3, 60*time.Second)
	g.now = func() time.Time { return clock }

	// Record far more events than the limit, each one window apart; the
	// history must stay bounded because RecordRestart prunes too.
	for i := 0; i < 100; i++ {
		clock = base.Add(time.Duration(i) * 61 * time.Second)
		g.RecordRestart()
	}
	g.mu.Lock()
	n := len(g.history)
	g.mu.Unlock()
	if n != 1 {
		t.Fatalf("history not pruned on record: len=%d", n)
	}
}

func TestInfo(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	clock := base
	g := NewGovernor(5, 300*time.Second)
	g.now = func() time.Time { return clock }

	info := g.Info()
	if info.RecentRestarts != 0 || !info.CanRestart || info.LastRestart != nil {
		t.Fatalf("unexpected empty info: %+v", info)
	}

	g.RecordRestart()
	clock = base.Add(10 * time.Second)
	g.RecordRestart()

	info = g.Info()
	if info.RecentRestarts != 2 {
		t.Fatalf("RecentRestarts = %d, want 2", info.RecentRestarts)
	}
	if info.MaxRestarts != 5 || info.WindowSeconds != 300 {
		t.Fatalf("limits not reported: %+v", info)
	}
	if info.LastRestart == nil || !info.LastRestart.Equal(base.Add(10*time.Second)) {
		t.Fatalf("LastRestart wrong: %v", info.LastRestart)
	}
}

func TestDefaults(t *testing.T) {
	g := NewGovernor(0, 0)
	if g.max != DefaultMaxRestarts || g.window != DefaultWindow {
		t.Fatalf("defaults not applied: max=%d window=%v", g.max, g.window)
	}
}

//go:build !windows

package pidfile

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestWriteProbeRemove(t *testing.T) {
	dir := t.TempDir()
	reg := New(filepath.Join(dir, "vigil.pid"))

	if err := reg.Write(os.Getpid()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(reg.Path)
	if err != nil {
		t.Fatalf("read pidfile: %v", err)
	}
	if got := string(b); got == "" || got[0] < '0' || got[0] > '9' {
		t.Fatalf("pidfile content not a pid: %q", got)
	}

	p, err := reg.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if p.State != Alive || p.PID != os.Getpid() {
		t.Fatalf("expected alive self, got %v pid=%d", p.State, p.PID)
	}
	if !reg.IsRunning() {
		t.Fatalf("IsRunning should be true for own pid")
	}

	if err := reg.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	// Idempotent: removing a missing file is not an error.
	if err := reg.Remove(); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if reg.IsRunning() {
		t.Fatalf("IsRunning should be false after Remove")
	}
}

func TestProbeMissingFile(t *testing.T) {
	reg := New(filepath.Join(t.TempDir(), "none.pid"))
	p, err := reg.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if p.State != Absent {
		t.Fatalf("expected Absent, got %v", p.State)
	}
}

func TestStaleHandleSelfHeals(t *testing.T) {
	// Run a short-lived child and wait for it so its pid is known-dead.
	cmd := exec.Command("sleep", "0")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run sleep: %v", err)
	}
	deadPID := cmd.Process.Pid

	reg := New(filepath.Join(t.TempDir(), "stale.pid"))
	if err := reg.Write(deadPID); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if reg.IsRunning() {
		t.Fatalf("dead pid reported running")
	}
	if _, err := os.Stat(reg.Path); !os.IsNotExist(err) {
		t.Fatalf("stale pidfile was not removed")
	}
}

func TestGarbageContentSelfHeals(t *testing.T) {
	reg := New(filepath.Join(t.TempDir(), "bad.pid"))
	if err := os.WriteFile(reg.Path, []byte("not-a-pid"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := reg.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if p.State != Absent {
		t.Fatalf("expected Absent for garbage content, got %v", p.State)
	}
	if _, err := os.Stat(reg.Path); !os.IsNotExist(err) {
		t.Fatalf("garbage pidfile was not removed")
	}
}

func TestPIDReturnsRecordedValue(t *testing.T) {
	reg := New(filepath.Join(t.TempDir(), "self.pid"))
	if err := reg.Write(os.Getpid()); err != nil {
		t.Fatal(err)
	}
	pid, ok := reg.PID()
	if !ok || pid != os.Getpid() {
		t.Fatalf("PID() = %d,%v; want %d,true", pid, ok, os.Getpid())
	}
}

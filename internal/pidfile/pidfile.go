package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Liveness is the tri-state result of probing the pid recorded in the file.
// Indeterminate means the probe could not disprove that the process exists
// (typically EPERM); callers must not conflate it with Absent.
type Liveness int

const (
	Absent Liveness = iota
	Alive
	Indeterminate
)

func (l Liveness) String() string {
	switch l {
	case Alive:
		return "alive"
	case Indeterminate:
		return "indeterminate"
	default:
		return "absent"
	}
}

// Probe describes what the registry learned about the recorded process.
type Probe struct {
	State Liveness
	PID   int
}

// ProbePID checks a process directly, without consulting any file.
func ProbePID(pid int) (Liveness, error) { return probePID(pid) }

// Registry is the on-disk liveness handle for a supervised process.
// The file holds a single decimal pid. It is single-writer (the supervised
// process) and multi-reader (status queries from unrelated processes).
type Registry struct {
	Path string
}

func New(path string) Registry { return Registry{Path: path} }

// Probe reads the pid from the file and checks whether that process exists.
// A file that is missing, unparseable, or names a confirmed-dead process
// yields Absent; in the latter two cases the stale file is deleted so the
// registry heals itself.
func (r Registry) Probe() (Probe, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Probe{State: Absent}, nil
		}
		return Probe{State: Absent}, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		_ = os.Remove(r.Path)
		return Probe{State: Absent}, nil
	}
	state, err := probePID(pid)
	if err != nil {
		return Probe{State: Absent, PID: pid}, err
	}
	if state == Absent {
		_ = os.Remove(r.Path)
		return Probe{State: Absent, PID: pid}, nil
	}
	return Probe{State: state, PID: pid}, nil
}

// IsRunning reports whether a supervised process can be presumed alive.
// Indeterminate counts as running: a probe we lack permission for cannot
// disprove liveness.
func (r Registry) IsRunning() bool {
	p, err := r.Probe()
	if err != nil {
		return false
	}
	return p.State != Absent
}

// PID returns the recorded pid when the process is presumed alive.
func (r Registry) PID() (int, bool) {
	p, err := r.Probe()
	if err != nil || p.State == Absent {
		return 0, false
	}
	return p.PID, true
}

// Write persists pid as the sole file content. The write goes through a
// temp file in the same directory followed by a rename so a concurrent
// reader never observes a half-written value.
func (r Registry) Write(pid int) error {
	dir := filepath.Dir(r.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("ensure pidfile dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.Path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create pidfile temp: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.WriteString(strconv.Itoa(pid)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write pidfile temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o600); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, r.Path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("replace pidfile: %w", err)
	}
	return nil
}

// Remove deletes the file. A missing file is not an error.
func (r Registry) Remove() error {
	err := os.Remove(r.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

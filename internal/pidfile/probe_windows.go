//go:build windows

package pidfile

import "os"

// probePID falls back to FindProcess on Windows, which succeeds for any
// pid; a follow-up Signal(0)-style check is not available, so a readable
// handle is treated as Indeterminate rather than a confirmed Alive.
func probePID(pid int) (Liveness, error) {
	if pid <= 0 {
		return Absent, nil
	}
	if _, err := os.FindProcess(pid); err != nil {
		return Absent, nil
	}
	return Indeterminate, nil
}

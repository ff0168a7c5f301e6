//go:build !windows

package pidfile

import (
	"errors"
	"syscall"
)

// probePID checks process existence with a zero-effect signal.
// ESRCH means confirmed absent; EPERM means the process exists but we may
// not signal it, which is Indeterminate rather than Absent.
func probePID(pid int) (Liveness, error) {
	if pid <= 0 {
		return Absent, nil
	}
	err := syscall.Kill(pid, 0)
	switch {
	case err == nil:
		return Alive, nil
	case errors.Is(err, syscall.ESRCH):
		return Absent, nil
	case errors.Is(err, syscall.EPERM):
		return Indeterminate, nil
	default:
		return Absent, err
	}
}

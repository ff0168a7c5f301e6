//go:build windows

package supervisor

import (
	"errors"
	"os"
)

// Windows has no SIGTERM delivery to foreign processes; both paths use
// the hard Kill from the os package.
func terminate(pid int) error { return kill(pid) }

func kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return errors.New("process not found")
	}
	return p.Kill()
}

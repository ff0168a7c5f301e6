//go:build !windows

package main

import (
	"os"
	"os/exec"
	"syscall"
)

// configureDaemonAttrs makes the child a session leader so it survives
// the parent's terminal.
func configureDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}

// daemonInit finishes detachment inside the supervised child: drop any
// inherited umask and move off the invoking directory so it can be
// unmounted.
func daemonInit() {
	syscall.Umask(0)
	_ = os.Chdir("/")
}

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/vigilproc/vigil/internal/supervisor"
)

// spawnDaemon re-invokes the current executable as a detached session
// leader running `start --supervised`. The child writes its own liveness
// record once supervision begins; the parent only reports the pid and
// returns.
func spawnDaemon(configPath, logDir string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("%w: resolve executable: %v", supervisor.ErrDetachFailed, err)
	}

	args := []string{"start", "--supervised"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	// #nosec 204
	cmd := exec.Command(executable, args...)
	configureDaemonAttrs(cmd)
	cmd.Stdin = nil

	// Bootstrap output goes to a plain file so failures before the
	// rotated logger is installed are not lost.
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o750); err != nil {
			return 0, fmt.Errorf("%w: create log dir: %v", supervisor.ErrDetachFailed, err)
		}
		// #nosec 304
		logF, err := os.OpenFile(filepath.Join(logDir, "vigil-bootstrap.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return 0, fmt.Errorf("%w: open bootstrap log: %v", supervisor.ErrDetachFailed, err)
		}
		defer func() { _ = logF.Close() }()
		cmd.Stdout = logF
		cmd.Stderr = logF
	} else {
		cmd.Stdout = nil
		cmd.Stderr = nil
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: %v", supervisor.ErrDetachFailed, err)
	}
	pid := cmd.Process.Pid
	// Detach fully: the child is reparented once this process exits.
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("%w: release child: %v", supervisor.ErrDetachFailed, err)
	}
	return pid, nil
}

package supervisor

import "errors"

// Sentinel errors for supervision failures. Callers branch with
// errors.Is; anything unrecognized propagates unchanged.
var (
	// ErrAlreadyRunning rejects a start while a live instance exists.
	ErrAlreadyRunning = errors.New("supervised process already running")

	// ErrSignalPermission reports a refused signal delivery. It is never
	// conflated with "confirmed absent".
	ErrSignalPermission = errors.New("not permitted to signal supervised process")

	// ErrDetachFailed reports that spawning the detached daemon process
	// failed. Fatal, never retried.
	ErrDetachFailed = errors.New("failed to detach daemon process")

	// ErrRestartLimit reports that the restart governor declined another
	// automatic restart.
	ErrRestartLimit = errors.New("automatic restart limit reached")
)

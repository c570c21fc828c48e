//go:build !unix

package runner

import (
	"os/exec"
	"time"
)

// configureProcessGroup is a no-op on non-Unix platforms: there is no
// process-group primitive to set, so only the direct child is managed.
func configureProcessGroup(cmd *exec.Cmd) {}

// terminate kills the direct child only (no process-group signal available)
// and then waits up to killGrace for waitErr to report its exit.
func terminate(cmd *exec.Cmd, waitErr <-chan error) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()

	timer := time.NewTimer(killGrace)
	defer timer.Stop()

	select {
	case <-waitErr:
	case <-timer.C:
	}
}

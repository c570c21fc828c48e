//go:build unix

package runner

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// configureProcessGroup puts the child in its own process group so a
// shell-wrapped command's children are reachable by a single group signal.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends SIGTERM to the whole process group, waits up to killGrace
// for waitErr to fire (the Cmd.Wait goroutine already owned by the caller),
// then escalates to SIGKILL if the process is still alive.
func terminate(cmd *exec.Cmd, waitErr <-chan error) {
	if cmd.Process == nil {
		return
	}
	pgid := cmd.Process.Pid

	_ = unix.Kill(-pgid, unix.SIGTERM)

	timer := time.NewTimer(killGrace)
	defer timer.Stop()

	select {
	case <-waitErr:
		return
	case <-timer.C:
	}

	_ = unix.Kill(-pgid, unix.SIGKILL)
	<-waitErr
}

//go:build darwin || linux

package sandbox

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// processGroupWaitDelay bounds pipe reads after the group is killed.
const processGroupWaitDelay = 3 * time.Second

// setupProcessGroup gives the child its own session and installs a Cancel
// function that kills the entire process group on context cancellation, so
// orphaned grandchildren cannot hold stdout/stderr pipes open past timeout.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true

	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return os.ErrProcessDone
		}
		pid := cmd.Process.Pid
		// kill(-1) kills all user processes and kill(0) kills the
		// caller's group. Treat invalid PIDs as already done.
		if pid <= 1 {
			return os.ErrProcessDone
		}
		err := syscall.Kill(-pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = processGroupWaitDelay
}

//go:build !darwin && !linux

package sandbox

import (
	"os/exec"
	"time"
)

// setupProcessGroup configures child termination on platforms without Unix
// process groups. exec.CommandContext's default kill plus a wait delay is
// the best available behavior.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.WaitDelay = 3 * time.Second
}

//go:build !windows

package os

import (
	"os/exec"
	"syscall"
	"time"
)

// configureProcess puts the child in its own process group so a cancelled
// context also stops anything it spawned (uv, npx and pip all fork).
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
}

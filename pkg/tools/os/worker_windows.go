//go:build windows

package os

import (
	"os/exec"
	"syscall"
	"time"
)

// configureProcess hides the console window that npx.cmd and uv.exe would
// otherwise open. exec.LookPath already resolves .cmd/.exe through PATHEXT.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	cmd.WaitDelay = 5 * time.Second
}

//go:build linux || darwin

package ffmpeg

import (
	"os/exec"
	"syscall"
)

// setupProcessGroup places ffmpeg in its own process group so it can be
// killed together with any children.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// killProcessGroup kills ffmpeg and its children.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	// the process may already be gone
	if err == syscall.ESRCH {
		return nil
	}
	return err
}

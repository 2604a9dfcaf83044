//go:build !windows

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcGroup starts cmd as the leader of its own process group and makes
// cancellation of the command's context kill the whole group, so helpers the
// worker forked do not outlive it.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = killWaitDelay
}

// exitStatus returns the process exit code, or 128+signo when the process
// was terminated by a signal.
func exitStatus(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

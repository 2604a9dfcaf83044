//go:build windows

package runner

import (
	"os"
	"os/exec"
)

// setProcGroup only sets WaitDelay on Windows. CommandContext already kills
// the process on cancellation and there are no Unix-style process groups.
func setProcGroup(cmd *exec.Cmd) {
	cmd.WaitDelay = killWaitDelay
}

func exitStatus(state *os.ProcessState) int {
	return state.ExitCode()
}

//go:build windows

package procgroup

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// ParseSignal accepts INT, KILL, and TERM (with or without the SIG prefix).
// Windows cannot deliver other signals to another process.
func ParseSignal(s string) (os.Signal, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "SIG")
	switch name {
	case "INT", "2":
		return os.Interrupt, nil
	case "KILL", "9":
		return os.Kill, nil
	case "TERM", "15":
		return syscall.SIGTERM, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSignal, s)
}

// SignalName returns the conventional name of sig.
func SignalName(sig os.Signal) string {
	switch sig {
	case os.Interrupt:
		return "SIGINT"
	case os.Kill:
		return "SIGKILL"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return sig.String()
}

func exitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}

// signalPID terminates the process; Windows has no way to deliver a
// catchable signal to another process, so every signal is a kill.
func signalPID(pid int, _ os.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("refusing to signal pid %d", pid)
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		// OpenProcess fails for PIDs that no longer exist.
		return fmt.Errorf("%w: %v", os.ErrProcessDone, err)
	}
	return p.Kill()
}

func isGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, os.ErrPermission)
}

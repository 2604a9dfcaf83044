package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/partest/internal/barrier"
	"github.com/AbdelazizMoustafa10m/partest/internal/config"
)

// lockedBuffer is a bytes.Buffer that tolerates concurrent writers, as when
// several workers share the command's stdout.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// resetRootCmd resets every global flag variable and cobra's Changed
// tracking across the whole command tree. Call it at the start of every
// test that executes rootCmd.
func resetRootCmd(t *testing.T) {
	t.Helper()
	flagVerbose = false
	flagQuiet = false
	flagConfig = ""
	flagDir = ""
	flagNoColor = false

	runOpts.processes = ""
	runOpts.multiply = ""
	runOpts.firstIsOne = false
	runOpts.signal.sig = nil
	runOpts.grace = 0
	runOpts.tmpDir = ""

	versionJSON = false
	versionShort = false
	waitInterval = barrier.DefaultInterval
	pidsCount = false
	pidsJSON = false
	stopSignal.sig = syscall.SIGTERM
	countProcesses = ""
	countMultiply = ""

	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		reset := func(f *pflag.Flag) { f.Changed = false }
		c.PersistentFlags().VisitAll(reset)
		c.Flags().VisitAll(reset)
		for _, child := range c.Commands() {
			walk(child)
		}
	}
	walk(rootCmd)

	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
}

// isolateEnv chdirs into a fresh directory and blanks or unsets every
// variable the commands read, so the host environment cannot leak in.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{
		config.EnvProcessors,
		config.EnvMultiply,
		config.EnvPidFile,
		config.EnvWorkerNumber,
		config.EnvGroups,
		"PARTEST_TMPDIR",
		"PARTEST_STOP_SIGNAL",
		"PARTEST_FIRST_IS_1",
		"PARTEST_VERBOSE",
		"PARTEST_QUIET",
		"PARTEST_LOG_FORMAT",
		"PARTEST_NO_COLOR",
	} {
		unsetEnv(t, key)
	}
	return dir
}

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

// runCLI executes rootCmd with args and returns stdout, stderr and the
// exit code.
func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr lockedBuffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	code := execute(context.Background())
	return stdout.String(), stderr.String(), code
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

//go:build !windows

package cli

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/partest/internal/config"
)

func TestRunCmd_SpawnsNumberedWorkers(t *testing.T) {
	resetRootCmd(t)
	isolateEnv(t)

	stdout, stderr, code := runCLI(t, "--no-color", "run", "-n", "3", "--",
		"sh", "-c", `echo "w=$TEST_ENV_NUMBER/$PARALLEL_TEST_GROUPS"`)

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "w=/3\n")
	assert.Contains(t, stdout, "w=2/3\n")
	assert.Contains(t, stdout, "w=3/3\n")
	assert.Contains(t, stderr, "3 worker(s), 0 failed")

	_, set := os.LookupEnv(config.EnvPidFile)
	assert.False(t, set, "session binding must be cleared after the run")
}

func TestRunCmd_FirstIsOneFromConfig(t *testing.T) {
	resetRootCmd(t)
	dir := isolateEnv(t)
	writeConfig(t, dir, "[workers]\nprocesses = 2\nfirst_is_one = true\n")

	stdout, stderr, code := runCLI(t, "run", "--", "sh", "-c", `echo "w=$TEST_ENV_NUMBER"`)

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "w=1\n")
	assert.Contains(t, stdout, "w=2\n")
}

func TestRunCmd_CountFromEnvAndMultiplier(t *testing.T) {
	resetRootCmd(t)
	isolateEnv(t)
	t.Setenv(config.EnvProcessors, "2")

	stdout, stderr, code := runCLI(t, "run", "-m", "2", "--", "sh", "-c", "echo x")

	require.Equal(t, 0, code, stderr)
	assert.Equal(t, 4, strings.Count(stdout, "x\n"))
}

func TestRunCmd_WorkerFailure(t *testing.T) {
	resetRootCmd(t)
	isolateEnv(t)

	_, stderr, code := runCLI(t, "--no-color", "run", "-n", "2", "--",
		"sh", "-c", `[ "$TEST_ENV_NUMBER" = 2 ] && exit 4; exit 0`)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "exit 4")
	assert.Contains(t, stderr, "2 worker(s), 1 failed")
}

func TestRunCmd_QuietSuppressesSummary(t *testing.T) {
	resetRootCmd(t)
	isolateEnv(t)

	_, stderr, code := runCLI(t, "-q", "run", "-n", "1", "--", "true")

	assert.Equal(t, 0, code)
	assert.NotContains(t, stderr, "worker(s)")
}

func TestRunCmd_ArgsAfterCommandAreNotParsed(t *testing.T) {
	resetRootCmd(t)
	isolateEnv(t)

	stdout, stderr, code := runCLI(t, "run", "-n", "1", "echo", "-n", "hello")

	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "hello", stdout)
}

func TestRunCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		toml string
		want string
	}{
		{name: "no command", args: []string{"run"}, want: "requires at least 1 arg"},
		{name: "bad count", args: []string{"run", "-n", "x", "--", "true"}, want: "not a valid number"},
		{name: "zero count", args: []string{"run", "-n", "0", "--", "true"}, want: "worker count"},
		{name: "bad signal flag", args: []string{"run", "--signal", "NOPE", "--", "true"}, want: "unknown signal"},
		{name: "bad signal in config", args: []string{"run", "-n", "1", "--", "true"}, toml: "[session]\nstop_signal = \"NOPE\"\n", want: "session.stop_signal"},
		{name: "invalid config", args: []string{"run", "--", "true"}, toml: "[session]\ngrace_period = \"-1s\"\n", want: "configuration has 1 error(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetRootCmd(t)
			dir := isolateEnv(t)
			if tt.toml != "" {
				writeConfig(t, dir, tt.toml)
			}

			_, stderr, code := runCLI(t, tt.args...)

			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestRunCmd_UnusableTempDir(t *testing.T) {
	resetRootCmd(t)
	dir := isolateEnv(t)

	_, stderr, code := runCLI(t, "--no-color", "run", "-n", "2", "--tmpdir", dir+"/missing", "--", "true")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "creating pid file")
	assert.NotContains(t, stderr, "worker(s)", "no summary when no worker ran")
}

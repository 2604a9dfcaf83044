package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetDefaults restores the global logger after a test mutates it.
func resetDefaults(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		log.SetLevel(log.InfoLevel)
		log.SetOutput(os.Stderr)
		log.SetFormatter(log.TextFormatter)
	})
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestOptions_Level(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want log.Level
	}{
		{name: "default", opts: Options{}, want: log.InfoLevel},
		{name: "verbose", opts: Options{Verbose: true}, want: log.DebugLevel},
		{name: "quiet", opts: Options{Quiet: true}, want: log.ErrorLevel},
		{name: "quiet wins", opts: Options{Verbose: true, Quiet: true}, want: log.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.Level())
		})
	}
}

func TestSetup_AppliesLevel(t *testing.T) {
	resetDefaults(t)

	Setup(Options{Verbose: true})
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	Setup(Options{Quiet: true})
	assert.Equal(t, log.ErrorLevel, log.GetLevel())
}

func TestSetup_WritesToStderr(t *testing.T) {
	resetDefaults(t)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	Setup(Options{})
	log.Info("after setup")

	assert.Empty(t, buf.String(), "Setup must replace the previous writer with stderr")
}

func TestSetup_JSONFormatter(t *testing.T) {
	resetDefaults(t)

	var buf bytes.Buffer
	Setup(Options{JSON: true})
	SetOutput(&buf)

	New("runner").Info("worker started", "index", 2)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed), buf.String())
	assert.Equal(t, "info", parsed["level"])
	assert.Equal(t, "worker started", parsed["msg"])
	assert.Equal(t, "runner", parsed["prefix"])
	assert.EqualValues(t, 2, parsed["index"])
}

func TestSetup_TextAfterJSON(t *testing.T) {
	resetDefaults(t)

	var buf bytes.Buffer
	Setup(Options{JSON: true})
	Setup(Options{})
	SetOutput(&buf)
	log.Info("plain")

	var parsed map[string]any
	assert.Error(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed))
	assert.Contains(t, buf.String(), "plain")
}

func TestNew_EmptyComponent(t *testing.T) {
	resetDefaults(t)

	var buf bytes.Buffer
	Setup(Options{JSON: true})
	SetOutput(&buf)
	New("").Info("no prefix")

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed))
	_, has := parsed["prefix"]
	assert.False(t, has)
}

func TestNew_RespectsLevel(t *testing.T) {
	resetDefaults(t)

	var buf bytes.Buffer
	Setup(Options{Quiet: true})
	SetOutput(&buf)
	logger := New("pids")

	logger.Info("hidden")
	logger.Warn("hidden too")
	assert.Empty(t, buf.String())

	logger.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestOptionsFromEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Options
	}{
		{name: "empty", env: map[string]string{}, want: Options{}},
		{name: "json", env: map[string]string{EnvLogFormat: "json"}, want: Options{JSON: true}},
		{name: "json any case", env: map[string]string{EnvLogFormat: " JSON "}, want: Options{JSON: true}},
		{name: "text", env: map[string]string{EnvLogFormat: "text"}, want: Options{}},
		{name: "verbose", env: map[string]string{EnvVerbose: "1"}, want: Options{Verbose: true}},
		{name: "quiet", env: map[string]string{EnvQuiet: "true"}, want: Options{Quiet: true}},
		{name: "garbage bool", env: map[string]string{EnvVerbose: "yes please"}, want: Options{}},
		{name: "false", env: map[string]string{EnvQuiet: "false"}, want: Options{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OptionsFromEnv(envMap(tt.env)))
		})
	}
}

func TestOptionsFromEnv_NilUsesProcessEnv(t *testing.T) {
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvVerbose, "")
	t.Setenv(EnvQuiet, "")

	assert.Equal(t, Options{JSON: true}, OptionsFromEnv(nil))
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	require.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Error("dropped") })
}

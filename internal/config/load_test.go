package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes content to partest.toml in a fresh temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// --- LoadFromFile tests ---

func TestLoadFromFile_ValidFull(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
[workers]
processes = 6
multiply = 1.5
first_is_one = true

[session]
temp_dir = "/var/tmp"
poll_interval = "250ms"
stop_signal = "INT"
grace_period = "10s"
`)

	cfg, md, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Workers.Processes)
	assert.Equal(t, 1.5, cfg.Workers.Multiply)
	assert.True(t, cfg.Workers.FirstIsOne)
	assert.Equal(t, "/var/tmp", cfg.Session.TempDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.PollInterval)
	assert.Equal(t, "INT", cfg.Session.StopSignal)
	assert.Equal(t, 10*time.Second, cfg.Session.GracePeriod)
	assert.Empty(t, md.Undecoded())
}

func TestLoadFromFile_Empty(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "")

	cfg, _, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, Config{}, *cfg)
}

func TestLoadFromFile_UnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
[workers]
processes = 2
procesess = 3

[reporting]
format = "json"
`)

	_, md, err := LoadFromFile(path)
	require.NoError(t, err)

	var keys []string
	for _, k := range md.Undecoded() {
		keys = append(keys, k.String())
	}
	assert.Contains(t, keys, "workers.procesess")
	assert.Contains(t, keys, "reporting")
}

func TestLoadFromFile_InvalidTOML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "[workers\nprocesses = ")

	_, _, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestLoadFromFile_WrongType(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "[workers]\nprocesses = \"many\"\n")

	_, _, err := LoadFromFile(path)
	require.Error(t, err)
}

func TestLoadFromFile_Missing(t *testing.T) {
	t.Parallel()
	_, _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

// --- FindConfigFile tests ---

func TestFindConfigFile_InStartDir(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "")

	found, err := FindConfigFile(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestFindConfigFile_WalksUp(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "")
	nested := filepath.Join(filepath.Dir(path), "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestFindConfigFile_Names(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{name: "hidden name", files: []string{HiddenConfigFileName}, want: HiddenConfigFileName},
		{name: "plain name wins", files: []string{HiddenConfigFileName, ConfigFileName}, want: ConfigFileName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			for _, f := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o644))
			}

			found, err := FindConfigFile(dir)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.want), found)
		})
	}
}

func TestFindConfigFile_StopsAtProjectRoot(t *testing.T) {
	t.Parallel()
	outer := writeConfig(t, "")
	project := filepath.Join(filepath.Dir(outer), "project")
	nested := filepath.Join(project, "pkg")
	require.NoError(t, os.MkdirAll(filepath.Join(project, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Empty(t, found, "config above the .git root must not be used")

	inside := filepath.Join(project, ConfigFileName)
	require.NoError(t, os.WriteFile(inside, nil, 0o644))
	found, err = FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, inside, found)
}

func TestFindConfigFile_NotFound(t *testing.T) {
	t.Parallel()
	// A fresh temp dir has no partest.toml; parents normally don't either.
	// Skip if someone left one at the filesystem root.
	if _, err := os.Stat(filepath.Join("/", ConfigFileName)); err == nil {
		t.Skip("partest.toml exists at filesystem root")
	}
	dir := t.TempDir()

	found, err := FindConfigFile(dir)
	require.NoError(t, err)
	if found != "" {
		// A partest.toml above the temp dir is outside the test's control.
		assert.NotEqual(t, filepath.Join(dir, ConfigFileName), found)
	}
}

package config

import "time"

// ConfigSource identifies where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates the value came from built-in defaults.
	SourceDefault ConfigSource = "default"
	// SourceFile indicates the value came from the partest.toml config file.
	SourceFile ConfigSource = "file"
	// SourceEnv indicates the value came from an environment variable.
	SourceEnv ConfigSource = "env"
	// SourceCLI indicates the value came from a CLI flag.
	SourceCLI ConfigSource = "cli"
)

// ResolvedConfig holds the fully-resolved configuration with source tracking.
// The Config field contains the merged values; Sources tracks where each came from.
//
// Worker count and multiplier are not merged here because they need the
// explicit flag value and can fail to parse; use Resolver for those, seeded
// with the file layer's Workers section.
type ResolvedConfig struct {
	Config  *Config
	Sources map[string]ConfigSource // key is dotted path, e.g., "session.stop_signal"
	Path    string                  // path to the config file used (empty if none)
}

// CLIOverrides captures flag values that can override configuration.
// Nil fields mean "not set" (do not override).
type CLIOverrides struct {
	FirstIsOne   *bool
	TempDir      *string
	PollInterval *time.Duration
	StopSignal   *string
	GracePeriod  *time.Duration
}

// Resolve merges configuration from all sources in priority order:
// CLI flags > environment variables > config file > defaults.
//
// Parameters:
//   - defaults: built-in default config (from NewDefaults())
//   - fileConfig: parsed config from partest.toml (nil if no file found)
//   - envFn: function to look up environment variables
//   - overrides: CLI flag values (nil fields mean "not set")
func Resolve(defaults *Config, fileConfig *Config, envFn EnvFunc, overrides *CLIOverrides) *ResolvedConfig {
	rc := &ResolvedConfig{
		Config:  &Config{},
		Sources: make(map[string]ConfigSource),
	}

	if defaults == nil {
		defaults = &Config{}
	}
	if envFn == nil {
		envFn = func(string) (string, bool) { return "", false }
	}
	if overrides == nil {
		overrides = &CLIOverrides{}
	}

	resolveFromDefaults(rc, defaults)
	if fileConfig != nil {
		resolveFromFile(rc, fileConfig)
	}
	resolveFromEnv(rc, envFn)
	resolveFromCLI(rc, overrides)

	return rc
}

// --- Layer 1: Defaults ---

func resolveFromDefaults(rc *ResolvedConfig, d *Config) {
	w := &rc.Config.Workers
	s := &rc.Config.Session

	w.Processes = d.Workers.Processes
	w.Multiply = d.Workers.Multiply
	w.FirstIsOne = d.Workers.FirstIsOne
	rc.Sources["workers.processes"] = SourceDefault
	rc.Sources["workers.multiply"] = SourceDefault
	rc.Sources["workers.first_is_one"] = SourceDefault

	setString(&s.TempDir, d.Session.TempDir, "session.temp_dir", SourceDefault, rc.Sources)
	setString(&s.StopSignal, d.Session.StopSignal, "session.stop_signal", SourceDefault, rc.Sources)
	setDuration(&s.PollInterval, d.Session.PollInterval, "session.poll_interval", SourceDefault, rc.Sources)
	setDuration(&s.GracePeriod, d.Session.GracePeriod, "session.grace_period", SourceDefault, rc.Sources)
}

// --- Layer 2: File ---

func resolveFromFile(rc *ResolvedConfig, f *Config) {
	w := &rc.Config.Workers
	s := &rc.Config.Session

	if f.Workers.Processes != 0 {
		w.Processes = f.Workers.Processes
		rc.Sources["workers.processes"] = SourceFile
	}
	if f.Workers.Multiply != 0 {
		w.Multiply = f.Workers.Multiply
		rc.Sources["workers.multiply"] = SourceFile
	}
	if f.Workers.FirstIsOne {
		w.FirstIsOne = true
		rc.Sources["workers.first_is_one"] = SourceFile
	}

	mergeString(&s.TempDir, f.Session.TempDir, "session.temp_dir", SourceFile, rc.Sources)
	mergeString(&s.StopSignal, f.Session.StopSignal, "session.stop_signal", SourceFile, rc.Sources)
	mergeDuration(&s.PollInterval, f.Session.PollInterval, "session.poll_interval", SourceFile, rc.Sources)
	mergeDuration(&s.GracePeriod, f.Session.GracePeriod, "session.grace_period", SourceFile, rc.Sources)
}

// --- Layer 3: Environment ---

// Environment variable mapping:
//
//	PARTEST_TMPDIR        -> session.temp_dir
//	PARTEST_STOP_SIGNAL   -> session.stop_signal
//	PARTEST_FIRST_IS_1    -> workers.first_is_one (any non-empty value)
//
// PARALLEL_TEST_PROCESSORS and PARALLEL_TEST_MULTIPLY_PROCESSES are read by
// Resolver, not here.
func resolveFromEnv(rc *ResolvedConfig, envFn EnvFunc) {
	s := &rc.Config.Session

	if val, ok := envFn("PARTEST_TMPDIR"); ok {
		s.TempDir = val
		rc.Sources["session.temp_dir"] = SourceEnv
	}
	if val, ok := envFn("PARTEST_STOP_SIGNAL"); ok && val != "" {
		s.StopSignal = val
		rc.Sources["session.stop_signal"] = SourceEnv
	}
	if val, ok := envFn("PARTEST_FIRST_IS_1"); ok && val != "" {
		rc.Config.Workers.FirstIsOne = true
		rc.Sources["workers.first_is_one"] = SourceEnv
	}
}

// --- Layer 4: CLI overrides ---

func resolveFromCLI(rc *ResolvedConfig, o *CLIOverrides) {
	s := &rc.Config.Session

	if o.FirstIsOne != nil {
		rc.Config.Workers.FirstIsOne = *o.FirstIsOne
		rc.Sources["workers.first_is_one"] = SourceCLI
	}
	if o.TempDir != nil {
		s.TempDir = *o.TempDir
		rc.Sources["session.temp_dir"] = SourceCLI
	}
	if o.StopSignal != nil {
		s.StopSignal = *o.StopSignal
		rc.Sources["session.stop_signal"] = SourceCLI
	}
	if o.PollInterval != nil {
		s.PollInterval = *o.PollInterval
		rc.Sources["session.poll_interval"] = SourceCLI
	}
	if o.GracePeriod != nil {
		s.GracePeriod = *o.GracePeriod
		rc.Sources["session.grace_period"] = SourceCLI
	}
}

// --- Helpers ---

// setString unconditionally sets the target to the given value and records the source.
func setString(target *string, value string, path string, source ConfigSource, sources map[string]ConfigSource) {
	*target = value
	sources[path] = source
}

// mergeString overwrites the target only if value is non-empty.
// For file-layer merging, an empty string in the file means "not set in file",
// so it does not override the default.
func mergeString(target *string, value string, path string, source ConfigSource, sources map[string]ConfigSource) {
	if value != "" {
		*target = value
		sources[path] = source
	}
}

func setDuration(target *time.Duration, value time.Duration, path string, source ConfigSource, sources map[string]ConfigSource) {
	*target = value
	sources[path] = source
}

func mergeDuration(target *time.Duration, value time.Duration, path string, source ConfigSource, sources map[string]ConfigSource) {
	if value != 0 {
		*target = value
		sources[path] = source
	}
}

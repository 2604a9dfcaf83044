package config

import "time"

// Config is the top-level configuration structure mapping to partest.toml.
type Config struct {
	Workers WorkersConfig `toml:"workers"`
	Session SessionConfig `toml:"session"`
}

// WorkersConfig maps to the [workers] section in partest.toml.
//
// Zero values mean "not set": Processes 0 falls through to the processor
// count and Multiply 0 falls through to DefaultMultiplier.
type WorkersConfig struct {
	Processes  int     `toml:"processes"`
	Multiply   float64 `toml:"multiply"`
	FirstIsOne bool    `toml:"first_is_one"`
}

// SessionConfig maps to the [session] section in partest.toml.
type SessionConfig struct {
	TempDir      string        `toml:"temp_dir"`
	PollInterval time.Duration `toml:"poll_interval"`
	StopSignal   string        `toml:"stop_signal"`
	GracePeriod  time.Duration `toml:"grace_period"`
}

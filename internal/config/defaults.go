package config

import "time"

// DefaultMultiplier is applied to the worker count when neither the caller
// nor the environment supplies one.
const DefaultMultiplier = 1.0

// NewDefaults returns a Config populated with all default values.
// Workers.Processes is left at zero; the processor count is computed at
// resolution time so the defaults stay deterministic.
func NewDefaults() *Config {
	return &Config{
		Workers: WorkersConfig{
			Multiply: DefaultMultiplier,
		},
		Session: SessionConfig{
			PollInterval: time.Second,
			StopSignal:   "SIGTERM",
			GracePeriod:  5 * time.Second,
		},
	}
}

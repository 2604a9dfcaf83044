package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	t.Parallel()
	cfg := NewDefaults()

	assert.Zero(t, cfg.Workers.Processes, "processes is computed at resolve time")
	assert.Equal(t, DefaultMultiplier, cfg.Workers.Multiply)
	assert.False(t, cfg.Workers.FirstIsOne)
	assert.Empty(t, cfg.Session.TempDir)
	assert.Equal(t, time.Second, cfg.Session.PollInterval)
	assert.Equal(t, "SIGTERM", cfg.Session.StopSignal)
	assert.Equal(t, 5*time.Second, cfg.Session.GracePeriod)
}

func TestNewDefaults_ReturnsFreshCopy(t *testing.T) {
	t.Parallel()
	a := NewDefaults()
	b := NewDefaults()
	a.Session.StopSignal = "SIGKILL"

	assert.Equal(t, "SIGTERM", b.Session.StopSignal)
}

func TestNewDefaults_PassesValidation(t *testing.T) {
	t.Parallel()
	vr := Validate(NewDefaults(), nil)
	assert.False(t, vr.HasErrors())
	assert.False(t, vr.HasWarnings())
}

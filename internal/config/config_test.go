package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_EngineTuningDefaults(t *testing.T) {
	t.Setenv("MAX_RETRIES", "")
	t.Setenv("GATEWAY_TIMEOUT", "")
	t.Setenv("REMINDER_DAYS_BEFORE", "")

	cfg := Load()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 3, cfg.ReminderDaysBefore)
}

func TestLoad_EngineTuningOverrides(t *testing.T) {
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("GATEWAY_TIMEOUT", "10s")
	t.Setenv("REMINDER_DAYS_BEFORE", "7")

	cfg := Load()
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 7, cfg.ReminderDaysBefore)
}

func TestLoad_InvalidTuningFallsBack(t *testing.T) {
	t.Setenv("MAX_RETRIES", "many")
	t.Setenv("GATEWAY_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.GatewayTimeout)
}

package config_test

import (
	"testing"
	"time"

	"github.com/straye-as/deal-engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiationConfig_VersionRetryBaseDelay(t *testing.T) {
	tests := []struct {
		name     string
		delayMs  int
		expected time.Duration
	}{
		{"configured", 20, 20 * time.Millisecond},
		{"zero is raised to a millisecond", 0, time.Millisecond},
		{"negative is raised to a millisecond", -5, time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := config.NegotiationConfig{VersionRetryBaseDelayMs: tt.delayMs}
			assert.Equal(t, tt.expected, n.VersionRetryBaseDelay())
		})
	}
}

func TestNegotiationConfig_Validate(t *testing.T) {
	assert.NoError(t, (&config.NegotiationConfig{VersionRetryBaseDelayMs: 1}).Validate())
	assert.Error(t, (&config.NegotiationConfig{VersionRetryBaseDelayMs: 0}).Validate())
	assert.Error(t, (&config.NegotiationConfig{VersionRetryBaseDelayMs: -1}).Validate())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Negotiation.VersionRetryBaseDelayMs)
	assert.Equal(t, "migrations", cfg.Database.MigrationsDir)
}

func TestLoad_RejectsNonPositiveRetryDelay(t *testing.T) {
	t.Setenv("NEGOTIATION_VERSIONRETRYBASEDELAYMS", "0")

	_, err := config.Load()
	assert.ErrorContains(t, err, "versionRetryBaseDelayMs")
}

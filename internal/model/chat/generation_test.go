package chat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerationConfigFixedLimits(t *testing.T) {
	cfg := NewGenerationConfig("gemini-2.0-flash", 0.7)

	assert.Equal(t, 0.8, cfg.TopP)
	assert.Equal(t, 40, cfg.TopK)
	assert.Equal(t, 2048, cfg.MaxOutputTokens)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestSnapTemperature(t *testing.T) {
	assert.InDelta(t, 0.3, SnapTemperature(0.26), 1e-9)
	assert.InDelta(t, 1.0, SnapTemperature(1.7), 1e-9)
	assert.InDelta(t, 0.0, SnapTemperature(-0.2), 1e-9)
	assert.InDelta(t, DefaultTemperature, SnapTemperature(math.NaN()), 1e-9)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cfg := GenerationConfig{Model: "m", Temperature: 1.5}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemperatureOutOfRange)

	cfg = GenerationConfig{Temperature: 0.5}
	assert.Error(t, cfg.Validate())
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("model").Valid())
}

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfigDefaults(t *testing.T) {
	cfg := config(Options{Level: "bogus"})
	assert.Equal(t, zapcore.InfoLevel, cfg.Level.Level())
	assert.Equal(t, "json", cfg.Encoding)
	assert.NotNil(t, cfg.Sampling)
	assert.Nil(t, cfg.InitialFields)
}

func TestConfigDebugConsole(t *testing.T) {
	cfg := config(Options{Service: "station-registry", Level: " DEBUG ", Format: "Console"})
	assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())
	assert.Equal(t, "console", cfg.Encoding)
	assert.Nil(t, cfg.Sampling)
	assert.Equal(t, "station-registry", cfg.InitialFields["service"])
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "")
	opts := OptionsFromEnv("evctl")
	assert.Equal(t, Options{Service: "evctl", Level: "warn"}, opts)

	logger, err := New(opts)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

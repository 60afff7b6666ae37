package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, DefaultSocketPath, cfg.Server.SocketPath)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
}

func TestUnixSocketEnvOverride(t *testing.T) {
	t.Setenv("UNIX_SOCKET", "/run/transcoded/listen.socket")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "/run/transcoded/listen.socket", cfg.Server.SocketPath)
}

func TestLoggingEnvOverride(t *testing.T) {
	t.Setenv("TRANSCODED_LOG_LEVEL", "debug")
	t.Setenv("TRANSCODED_LOG_FORMAT", "text")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

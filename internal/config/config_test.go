package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, 4000, cfg.HTTP.AgentEventsPort)
	assert.Equal(t, 50, cfg.Agent.MaxSteps)
	assert.Equal(t, 32, cfg.Pool.MaxConnections)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	os.Unsetenv("AGENT_EVENTS_PORT")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

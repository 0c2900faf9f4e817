package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-console-session/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, 5*time.Minute, c.GetHeartbeatInterval())
	require.Equal(t, 10*time.Minute, c.GetIdleTimeout())
	require.Equal(t, []string{"localhost"}, c.GetLocalHostSuffixes())
	require.Equal(t, "/no-workspace", c.GetPages().NoWorkspace)
}

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("CONSOLE_API_URL", "https://api.example.com/v1/")
	t.Setenv("HEARTBEAT_INTERVAL", "1m")
	t.Setenv("LOCAL_HOST_SUFFIXES", "localhost, test ,")

	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "https://api.example.com/v1", c.GetAPIBaseURL())
	require.Equal(t, time.Minute, c.GetHeartbeatInterval())
	require.Equal(t, []string{"localhost", "test"}, c.GetLocalHostSuffixes())
}

func TestNew_InvalidDuration(t *testing.T) {
	t.Setenv("IDLE_TIMEOUT", "ten minutes")

	_, err := config.New()
	require.Error(t, err)
}

func TestNew_StateAndTelemetry(t *testing.T) {
	t.Setenv("CONSOLE_STATE_REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("CONSOLE_STATE_NAMESPACE", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("INPUT_HEARTBEAT_MIN_INTERVAL", "30s")

	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "redis://localhost:6379/2", c.GetStateRedisURL())
	require.Equal(t, "default", c.GetStateNamespace())
	require.Equal(t, "collector:4317", c.GetOTLPEndpoint())
	require.True(t, c.GetOTLPInsecure())
	require.Equal(t, 30*time.Second, c.GetInputHeartbeatMinInterval())
}

package credential_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-console-session/credential"
	"github.com/stretchr/testify/require"
)

// Set CONSOLE_TEST_REDIS_URL, e.g. redis://localhost:6379/15, to run against a
// real server.
func setupRedisStore(t *testing.T) *credential.RedisStore {
	t.Helper()

	redisURL := os.Getenv("CONSOLE_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("CONSOLE_TEST_REDIS_URL not set")
	}
	client, err := credential.NewRedisClient(context.Background(), redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return credential.NewRedisStore(client, "test-"+uuid.NewString())
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := credential.NewRedisClient(context.Background(), "not a url")
	require.Error(t, err)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	rs := setupRedisStore(t)

	_, ok, err := rs.Get(credential.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, rs.Set(credential.KeyAccessToken, "token-1"))
	require.NoError(t, rs.Set(credential.KeyPendingEmail, "jane@acme.test"))

	value, ok, err := rs.Get(credential.KeyAccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "token-1", value)

	require.NoError(t, rs.Delete(credential.KeyAccessToken))
	require.NoError(t, rs.Delete(credential.KeyAccessToken))
	_, ok, err = rs.Get(credential.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, ok)

	value, ok, err = rs.Get(credential.KeyPendingEmail)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "jane@acme.test", value)
}

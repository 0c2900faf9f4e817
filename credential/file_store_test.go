package credential_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-console-session/credential"
	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	fs := credential.NewFileStore(filepath.Join(t.TempDir(), "state.json"))

	_, ok, err := fs.Get(credential.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, fs.Delete(credential.KeyAccessToken), "deleting a missing key is not an error")
}

func TestFileStore_SurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	fs := credential.NewFileStore(path)
	require.NoError(t, fs.Set(credential.KeyAccessToken, "token-1"))
	require.NoError(t, fs.Set(credential.KeySessionID, "session-1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded := credential.NewFileStore(path)
	value, ok, err := reloaded.Get(credential.KeyAccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "token-1", value)

	require.NoError(t, reloaded.Delete(credential.KeyAccessToken))
	_, ok, err = fs.Get(credential.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, ok)

	value, ok, err = fs.Get(credential.KeySessionID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "session-1", value)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := credential.NewFileStore(path).Get(credential.KeyAccessToken)
	require.Error(t, err)
}

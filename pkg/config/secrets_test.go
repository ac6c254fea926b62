package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretStoreSaveAndUnlock(t *testing.T) {
	dir := t.TempDir()
	store := NewSecretStore(dir)
	assert.False(t, store.Exists())

	store.Set(SecretJiraAPIToken, "jira-token")
	store.Set(SecretModelAPIKey, "model-key")
	require.NoError(t, store.Save("correct horse"))
	assert.True(t, store.Exists())

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened := NewSecretStore(dir)
	require.NoError(t, reopened.Unlock("correct horse"))
	got, err := reopened.Get(SecretJiraAPIToken)
	require.NoError(t, err)
	assert.Equal(t, "jira-token", got)
	assert.Equal(t, []string{"JIRA_API_TOKEN", "MODEL_API_KEY"}, reopened.Names())
}

func TestSecretStoreWrongPassword(t *testing.T) {
	dir := t.TempDir()
	store := NewSecretStore(dir)
	store.Set("A", "b")
	require.NoError(t, store.Save("right"))

	err := NewSecretStore(dir).Unlock("wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong password")
}

func TestDecryptRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), SecretsFileName)
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := DecryptSecretsFile(path, "pw")
	assert.ErrorContains(t, err, "too small")
}

func TestSecretStoreEnvFallback(t *testing.T) {
	store := NewSecretStore(t.TempDir())
	store.getenv = func(name string) string {
		if name == "GROQ_API_KEY" {
			return "from-env"
		}
		return ""
	}

	_, err := store.Get(SecretModelAPIKey)
	assert.ErrorIs(t, err, ErrSecretNotFound)

	key, err := store.First(APIKeyNames(ProviderGroq)...)
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	store.Set(SecretModelAPIKey, "stored")
	key, err = store.First(APIKeyNames(ProviderGroq)...)
	require.NoError(t, err)
	assert.Equal(t, "stored", key)
}

func TestNilSecretStoreReadsEnvironment(t *testing.T) {
	t.Setenv("STORYQA_TEST_SECRET", "value")
	var store *SecretStore

	got, err := store.Get("STORYQA_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

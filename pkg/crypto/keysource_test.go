package crypto

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap/zaptest"
)

func TestKeySource_ExplicitKeyWins(t *testing.T) {
	src := NewKeySource(KeySourceConfig{
		ExplicitKey: testKey,
		KeyFile:     filepath.Join(t.TempDir(), "encryption.key"),
	}, zaptest.NewLogger(t))

	key, err := src.Load()
	require.NoError(t, err)
	assert.Equal(t, testKey, key)
}

func TestKeySource_CreatesAndReusesKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "encryption.key")
	src := NewKeySource(KeySourceConfig{KeyFile: path}, zaptest.NewLogger(t))

	first, err := src.Load()
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := src.Load()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = NewCredentialEncryptor(first)
	require.NoError(t, err)
}

func TestKeySource_EmptyKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encryption.key")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	_, err := NewKeySource(KeySourceConfig{KeyFile: path}, nil).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestKeySource_UsesKeyring(t *testing.T) {
	keyring.MockInit()

	path := filepath.Join(t.TempDir(), "encryption.key")
	src := NewKeySource(KeySourceConfig{UseKeyring: true, KeyFile: path}, zaptest.NewLogger(t))

	key, err := src.Load()
	require.NoError(t, err)

	stored, err := keyring.Get(DefaultKeyringService, DefaultKeyringAccount)
	require.NoError(t, err)
	assert.Equal(t, key, stored)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "key file should not be written when keyring works")

	again, err := src.Load()
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestKeySource_PrefersExistingKeyFileOverNewKeyringEntry(t *testing.T) {
	keyring.MockInit()

	path := filepath.Join(t.TempDir(), "encryption.key")
	require.NoError(t, os.WriteFile(path, []byte(testKey+"\n"), 0o600))

	key, err := NewKeySource(KeySourceConfig{
		UseKeyring:     true,
		KeyringService: "ekaya-dbclient-test-existing",
		KeyFile:        path,
	}, zaptest.NewLogger(t)).Load()
	require.NoError(t, err)
	assert.Equal(t, testKey, key)
}

func TestKeySource_KeyringErrorFallsBackToFile(t *testing.T) {
	keyring.MockInitWithError(errors.New("secret service not available"))
	t.Cleanup(keyring.MockInit)

	path := filepath.Join(t.TempDir(), "encryption.key")
	key, err := NewKeySource(KeySourceConfig{UseKeyring: true, KeyFile: path}, zaptest.NewLogger(t)).Load()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, key, strings.TrimSpace(string(data)))
}

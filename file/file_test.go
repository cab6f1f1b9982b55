package file

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libopenstorage/keychain"
	"github.com/libopenstorage/keychain/test"
)

func newTestBackend(t *testing.T, dir, passphrase string) keychain.Backend {
	backend, err := New(map[string]interface{}{
		FilePath:       dir,
		FilePassphrase: passphrase,
	})
	require.NoError(t, err)
	return backend
}

func TestAll(t *testing.T) {
	backend := newTestBackend(t, t.TempDir(), "test-passphrase")
	test.RunForBackend(backend, t)
}

func TestNewRequiresConfig(t *testing.T) {
	t.Setenv(FilePath, "")
	t.Setenv(FilePassphrase, "")

	_, err := New(nil)
	assert.Equal(t, ErrPathNotSet, err)

	_, err = New(map[string]interface{}{FilePath: t.TempDir()})
	assert.Equal(t, ErrPassphraseNotSet, err)
}

func TestConfigFallsBackToEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(FilePath, dir)
	t.Setenv(FilePassphrase, "env-passphrase")

	backend, err := New(nil)
	require.NoError(t, err)

	key := keychain.SecretKey{Service: "svc", Account: "acct"}
	require.NoError(t, backend.Insert(context.Background(), key, []byte("value")))
	entry, err := backend.Find(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), entry.Value)
}

func TestFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	dir := t.TempDir()
	backend := newTestBackend(t, dir, "test-passphrase")

	key := keychain.SecretKey{Service: "svc", Account: "acct"}
	require.NoError(t, backend.Insert(context.Background(), key, []byte("value")))

	for _, sub := range []string{"secrets", filepath.Join("secrets", "svc")} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm(), "Unexpected mode on %s", sub)
	}
	for _, sub := range []string{"salt", filepath.Join("secrets", "svc", "acct")} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "Unexpected mode on %s", sub)
	}
}

func TestReopenWithSamePassphrase(t *testing.T) {
	dir := t.TempDir()
	first := newTestBackend(t, dir, "test-passphrase")

	key := keychain.SecretKey{Service: "svc", Account: "acct"}
	require.NoError(t, first.Insert(context.Background(), key, []byte("value")))

	// A second backend over the same directory reuses the stored salt.
	second := newTestBackend(t, dir, "test-passphrase")
	entry, err := second.Find(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), entry.Value)
}

func TestWrongPassphraseSurfacesNoData(t *testing.T) {
	dir := t.TempDir()
	store := keychain.NewSecretStore(newTestBackend(t, dir, "correct"))

	key := keychain.SecretKey{Service: "svc", Account: "acct"}
	require.NoError(t, store.Write(context.Background(), key, []byte("payload")))

	other := keychain.NewSecretStore(newTestBackend(t, dir, "wrong"))
	_, err := other.Read(context.Background(), key)
	var noData *keychain.ErrItemHasNoData
	assert.ErrorAs(t, err, &noData, "Expected a no-data error, got %v", err)

	// The record still counts as present, a write replaces it in place.
	require.NoError(t, other.Write(context.Background(), key, []byte("replacement")))
	value, err := other.Read(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("replacement"), value)
}

func TestKeyComponentsAreEscaped(t *testing.T) {
	dir := t.TempDir()
	backend := newTestBackend(t, dir, "test-passphrase")

	key := keychain.SecretKey{Service: "svc/../escape", Account: ""}
	require.NoError(t, backend.Insert(context.Background(), key, []byte("value")))

	entry, err := backend.Find(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), entry.Value)

	// Nothing may land outside the secrets directory.
	_, err = os.Stat(filepath.Join(dir, "secrets", "svc%2F..%2Fescape", "%"))
	assert.NoError(t, err)
}

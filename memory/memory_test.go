package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libopenstorage/keychain"
	"github.com/libopenstorage/keychain/test"
)

func TestAll(t *testing.T) {
	backend, err := New(nil)
	require.NoError(t, err)
	test.RunForBackend(backend, t)
}

func TestFindReturnsACopy(t *testing.T) {
	backend, err := New(nil)
	require.NoError(t, err)

	key := keychain.SecretKey{Service: "svc", Account: "acct"}
	require.NoError(t, backend.Insert(context.Background(), key, []byte("value")))

	entry, err := backend.Find(context.Background(), key)
	require.NoError(t, err)
	entry.Value[0] = 'X'

	entry, err = backend.Find(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), entry.Value, "Mutating a returned value must not touch the stored one")
}

func TestInsertDetachesFromCallerSlice(t *testing.T) {
	backend, err := New(nil)
	require.NoError(t, err)

	key := keychain.SecretKey{Service: "svc", Account: "detached"}
	value := []byte("value")
	require.NoError(t, backend.Insert(context.Background(), key, value))
	value[0] = 'X'

	entry, err := backend.Find(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), entry.Value, "Mutating the caller's slice must not touch the stored one")
}

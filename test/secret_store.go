package test

import (
	"context"
	"testing"

	"github.com/pborman/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/libopenstorage/keychain"
)

type backendTest struct {
	store    *keychain.SecretStore
	backend  keychain.Backend
	key      keychain.SecretKey
	second   keychain.SecretKey
	sibling  keychain.SecretKey
	probeKey keychain.SecretKey
	lifeKey  keychain.SecretKey
}

// RunForBackend drives the facade and the raw backend through the shared
// conformance suite. Every backend package runs it against a hermetic
// instance of its store.
func RunForBackend(backend keychain.Backend, t *testing.T) {
	service := "keychain_test_" + uuid.New()
	bt := &backendTest{
		store:    keychain.NewSecretStore(backend),
		backend:  backend,
		key:      keychain.SecretKey{Service: service, Account: "primary"},
		second:   keychain.SecretKey{Service: service, Account: "secondary"},
		sibling:  keychain.SecretKey{Service: service + "_other", Account: "primary"},
		probeKey: keychain.SecretKey{Service: service, Account: "probe_" + uuid.New()},
		lifeKey:  keychain.SecretKey{Service: service, Account: "cycle_" + uuid.New()},
	}

	Run(bt, t)
	bt.cleanup(t)
}

func (bt *backendTest) TestWriteRead(t *testing.T) {
	payload := binaryPayload(4096)
	err := bt.store.Write(context.Background(), bt.key, payload)
	assert.NoError(t, err, "Unexpected error on Write")

	value, err := bt.store.Read(context.Background(), bt.key)
	assert.NoError(t, err, "Unexpected error on Read")
	assert.Equal(t, payload, value, "Expected Read to return the bytes written")

	// Empty values are legal and distinct from absent entries.
	err = bt.store.Write(context.Background(), bt.second, []byte{})
	assert.NoError(t, err, "Unexpected error on Write of an empty value")

	value, err = bt.store.Read(context.Background(), bt.second)
	assert.NoError(t, err, "Unexpected error on Read of an empty value")
	assert.Empty(t, value, "Expected an empty value")
}

func (bt *backendTest) TestOverwrite(t *testing.T) {
	initial := []byte("initial_" + uuid.New())
	replacement := []byte("replacement_" + uuid.New())

	err := bt.store.Write(context.Background(), bt.key, initial)
	assert.NoError(t, err, "Unexpected error on Write")

	err = bt.store.Write(context.Background(), bt.key, replacement)
	assert.NoError(t, err, "Unexpected error on overwriting Write")

	value, err := bt.store.Read(context.Background(), bt.key)
	assert.NoError(t, err, "Unexpected error on Read")
	assert.Equal(t, replacement, value, "Expected Read to return the latest value")
}

func (bt *backendTest) TestKeyIsolation(t *testing.T) {
	valueA := []byte("alpha_" + uuid.New())
	valueB := []byte("beta_" + uuid.New())
	valueC := []byte("gamma_" + uuid.New())

	assert.NoError(t, bt.store.Write(context.Background(), bt.key, valueA))
	assert.NoError(t, bt.store.Write(context.Background(), bt.second, valueB))
	assert.NoError(t, bt.store.Write(context.Background(), bt.sibling, valueC))

	value, err := bt.store.Read(context.Background(), bt.key)
	assert.NoError(t, err, "Unexpected error on Read")
	assert.Equal(t, valueA, value, "Keys differing in account must not interfere")

	value, err = bt.store.Read(context.Background(), bt.second)
	assert.NoError(t, err, "Unexpected error on Read")
	assert.Equal(t, valueB, value, "Keys differing in account must not interfere")

	value, err = bt.store.Read(context.Background(), bt.sibling)
	assert.NoError(t, err, "Unexpected error on Read")
	assert.Equal(t, valueC, value, "Keys differing in service must not interfere")
}

func (bt *backendTest) TestDelete(t *testing.T) {
	err := bt.store.Delete(context.Background(), bt.key)
	assert.NoError(t, err, "Unexpected error on Delete")

	_, err = bt.store.Read(context.Background(), bt.key)
	assert.True(t, keychain.IsItemNotFound(err),
		"Expected item not found after Delete, got %v", err)

	// Deleting an already absent entry succeeds.
	err = bt.store.Delete(context.Background(), bt.key)
	assert.NoError(t, err, "Unexpected error on repeated Delete")

	err = bt.store.Delete(context.Background(),
		keychain.SecretKey{Service: "unknown_" + uuid.New(), Account: "unknown"})
	assert.NoError(t, err, "Unexpected error on Delete of an unknown key")
}

func (bt *backendTest) TestFindStates(t *testing.T) {
	// Absence is the only state reported as ErrEntryNotFound.
	entry, err := bt.backend.Find(context.Background(),
		keychain.SecretKey{Service: "unknown_" + uuid.New(), Account: "unknown"})
	assert.ErrorIs(t, err, keychain.ErrEntryNotFound, "Expected ErrEntryNotFound for an absent key")
	assert.Nil(t, entry, "Expected no entry for an absent key")

	err = bt.backend.Insert(context.Background(), bt.probeKey, []byte("probe"))
	assert.NoError(t, err, "Unexpected error on Insert")

	entry, err = bt.backend.Find(context.Background(), bt.probeKey)
	assert.NoError(t, err, "Unexpected error on Find")
	if assert.NotNil(t, entry, "Expected an entry for an existing key") {
		assert.Equal(t, bt.probeKey, entry.Key, "Entry carries the wrong key")
		assert.Equal(t, []byte("probe"), entry.Value, "Entry carries the wrong value")
	}
}

func (bt *backendTest) TestInsertExisting(t *testing.T) {
	err := bt.backend.Insert(context.Background(), bt.probeKey, []byte("again"))
	assert.ErrorIs(t, err, keychain.ErrEntryExists, "Expected ErrEntryExists on Insert over an existing key")
}

func (bt *backendTest) TestUpdateMissing(t *testing.T) {
	err := bt.backend.Update(context.Background(),
		keychain.SecretKey{Service: "unknown_" + uuid.New(), Account: "unknown"},
		[]byte("value"))
	assert.ErrorIs(t, err, keychain.ErrEntryNotFound, "Expected ErrEntryNotFound on Update of an absent key")
}

func (bt *backendTest) TestLifecycle(t *testing.T) {
	value := []byte("lifecycle_" + uuid.New())

	err := bt.store.Write(context.Background(), bt.lifeKey, value)
	assert.NoError(t, err, "Unexpected error on Write")

	got, err := bt.store.Read(context.Background(), bt.lifeKey)
	assert.NoError(t, err, "Unexpected error on Read")
	assert.Equal(t, value, got, "Expected Read to return the bytes written")

	err = bt.store.Delete(context.Background(), bt.lifeKey)
	assert.NoError(t, err, "Unexpected error on Delete")

	_, err = bt.store.Read(context.Background(), bt.lifeKey)
	assert.True(t, keychain.IsItemNotFound(err),
		"Expected item not found after Delete, got %v", err)

	err = bt.store.Delete(context.Background(), bt.lifeKey)
	assert.NoError(t, err, "Unexpected error on repeated Delete")

	// A deleted key is writable again.
	err = bt.store.Write(context.Background(), bt.lifeKey, value)
	assert.NoError(t, err, "Unexpected error on Write after Delete")

	got, err = bt.store.Read(context.Background(), bt.lifeKey)
	assert.NoError(t, err, "Unexpected error on Read after rewrite")
	assert.Equal(t, value, got, "Expected Read to return the rewritten bytes")
}

func (bt *backendTest) cleanup(t *testing.T) {
	keys := []keychain.SecretKey{bt.key, bt.second, bt.sibling, bt.probeKey, bt.lifeKey}
	for _, key := range keys {
		assert.NoError(t, bt.store.Delete(context.Background(), key),
			"Unexpected error cleaning up %v", key)
	}
}

func binaryPayload(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i)
	}
	return payload
}

package chain

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libopenstorage/keychain"
	"github.com/libopenstorage/keychain/memory"
	"github.com/libopenstorage/keychain/mock"
	"github.com/libopenstorage/keychain/test"
)

var testKey = keychain.SecretKey{Service: "service", Account: "account"}

func newMockChain(t *testing.T) (keychain.Backend, *mock.MockBackend, *mock.MockBackend) {
	ctrl := gomock.NewController(t)
	primary := mock.NewMockBackend(ctrl)
	fallback := mock.NewMockBackend(ctrl)
	backend, err := NewWithBackends(primary, fallback)
	require.NoError(t, err)
	return backend, primary, fallback
}

func unavailableErr() error {
	return fmt.Errorf("%w: secret service refused", keychain.ErrBackendUnavailable)
}

func TestAll(t *testing.T) {
	primary, err := memory.New(nil)
	require.NoError(t, err)
	fallback, err := memory.New(nil)
	require.NoError(t, err)

	backend, err := NewWithBackends(primary, fallback)
	require.NoError(t, err)
	test.RunForBackend(backend, t)
}

func TestFallsBackWhenPrimaryUnavailable(t *testing.T) {
	backend, primary, fallback := newMockChain(t)

	entry := &keychain.Entry{Key: testKey, Value: []byte("value")}
	primary.EXPECT().
		Find(gomock.Any(), testKey).
		Return(nil, unavailableErr()).
		Times(1)
	fallback.EXPECT().
		Find(gomock.Any(), testKey).
		Return(entry, nil).
		Times(1)

	got, err := backend.Find(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestWritesFallBackWhenPrimaryUnavailable(t *testing.T) {
	backend, primary, fallback := newMockChain(t)
	value := []byte("value")

	primary.EXPECT().Insert(gomock.Any(), testKey, value).Return(unavailableErr()).Times(1)
	fallback.EXPECT().Insert(gomock.Any(), testKey, value).Return(nil).Times(1)
	assert.NoError(t, backend.Insert(context.Background(), testKey, value))

	primary.EXPECT().Update(gomock.Any(), testKey, value).Return(unavailableErr()).Times(1)
	fallback.EXPECT().Update(gomock.Any(), testKey, value).Return(nil).Times(1)
	assert.NoError(t, backend.Update(context.Background(), testKey, value))

	primary.EXPECT().Delete(gomock.Any(), testKey).Return(unavailableErr()).Times(1)
	fallback.EXPECT().Delete(gomock.Any(), testKey).Return(nil).Times(1)
	assert.NoError(t, backend.Delete(context.Background(), testKey))
}

func TestAbsenceDoesNotFallBack(t *testing.T) {
	backend, primary, _ := newMockChain(t)

	// Absence is an authoritative answer from the primary.
	primary.EXPECT().
		Find(gomock.Any(), testKey).
		Return(nil, keychain.ErrEntryNotFound).
		Times(1)

	_, err := backend.Find(context.Background(), testKey)
	assert.ErrorIs(t, err, keychain.ErrEntryNotFound)
}

func TestPrimaryFailureDoesNotFallBack(t *testing.T) {
	backend, primary, _ := newMockChain(t)

	primaryErr := fmt.Errorf("corrupt record")
	primary.EXPECT().
		Find(gomock.Any(), testKey).
		Return(nil, primaryErr).
		Times(1)

	_, err := backend.Find(context.Background(), testKey)
	assert.Equal(t, primaryErr, err)
}

func TestCanceledContextDoesNotFallBack(t *testing.T) {
	backend, primary, _ := newMockChain(t)

	// Even an unavailable primary must not fail over when the caller
	// canceled the operation.
	canceled := fmt.Errorf("%w: %w", keychain.ErrBackendUnavailable, context.Canceled)
	primary.EXPECT().
		Find(gomock.Any(), testKey).
		Return(nil, canceled).
		Times(1)

	_, err := backend.Find(context.Background(), testKey)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailoverWarnsOnce(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	backend, primary, fallback := newMockChain(t)
	primary.EXPECT().Find(gomock.Any(), testKey).Return(nil, unavailableErr()).Times(2)
	fallback.EXPECT().Find(gomock.Any(), testKey).Return(nil, keychain.ErrEntryNotFound).Times(2)

	_, err := backend.Find(context.Background(), testKey)
	assert.ErrorIs(t, err, keychain.ErrEntryNotFound)
	_, err = backend.Find(context.Background(), testKey)
	assert.ErrorIs(t, err, keychain.ErrEntryNotFound)

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings, "Expected exactly one failover warning")
}

func TestNewWithBackendsValidatesMembers(t *testing.T) {
	fallback, err := memory.New(nil)
	require.NoError(t, err)

	_, err = NewWithBackends(nil, fallback)
	assert.Equal(t, ErrPrimaryNotSet, err)

	_, err = NewWithBackends(fallback, nil)
	assert.Equal(t, ErrFallbackNotSet, err)
}

func TestNewFromConfig(t *testing.T) {
	primary, err := memory.New(nil)
	require.NoError(t, err)

	// The primary rides along as an instance, the fallback is built by
	// name through the registry.
	backend, err := New(map[string]interface{}{
		ChainPrimary:  primary,
		ChainFallback: memory.Name,
	})
	require.NoError(t, err)

	store := keychain.NewSecretStore(backend)
	require.NoError(t, store.Write(context.Background(), testKey, []byte("value")))
	value, err := store.Read(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	// The write went to the primary member.
	entry, err := primary.Find(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), entry.Value)
}

func TestNewRequiresMembers(t *testing.T) {
	t.Setenv(ChainPrimary, "")
	t.Setenv(ChainFallback, "")

	_, err := New(map[string]interface{}{})
	assert.Equal(t, ErrPrimaryNotSet, err)

	_, err = New(map[string]interface{}{ChainPrimary: memory.Name})
	assert.Equal(t, ErrFallbackNotSet, err)
}

func TestConcurrentRegisterAndNew(t *testing.T) {
	secretConfig := map[string]interface{}{
		ChainPrimary:  memory.Name,
		ChainFallback: memory.Name,
	}

	// Building members by name re-enters the registry, so a registration
	// arriving between the two lookups must not wedge either goroutine.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, err := keychain.New(Name, secretConfig)
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			assert.NoError(t, keychain.Register("chain_test_"+uuid.New(), memory.New))
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("constructing a chain by name deadlocked against a concurrent Register")
	}
}

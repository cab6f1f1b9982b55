// Package memory provides a process local, in memory keychain backend.
// Entries live in a mutex guarded map, so concurrent writers to the same
// key resolve to last writer wins. Useful for tests and for callers that
// want an ephemeral store behind the keychain contract.
package memory

import (
	"context"
	"sync"

	"github.com/libopenstorage/keychain"
)

const (
	Name = keychain.TypeMemory
)

type memoryBackend struct {
	mu      sync.RWMutex
	entries map[keychain.SecretKey][]byte
}

// New returns an empty in memory backend. secretConfig is unused.
func New(
	secretConfig map[string]interface{},
) (keychain.Backend, error) {
	return &memoryBackend{
		entries: make(map[keychain.SecretKey][]byte),
	}, nil
}

func (m *memoryBackend) String() string {
	return Name
}

func (m *memoryBackend) Find(ctx context.Context, key keychain.SecretKey) (*keychain.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.entries[key]
	if !exists {
		return nil, keychain.ErrEntryNotFound
	}
	entry := &keychain.Entry{Key: key}
	if value != nil {
		entry.Value = append([]byte{}, value...)
	}
	return entry, nil
}

func (m *memoryBackend) Insert(ctx context.Context, key keychain.SecretKey, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; exists {
		return keychain.ErrEntryExists
	}
	m.entries[key] = append([]byte{}, value...)
	return nil
}

func (m *memoryBackend) Update(ctx context.Context, key keychain.SecretKey, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists {
		return keychain.ErrEntryNotFound
	}
	m.entries[key] = append([]byte{}, value...)
	return nil
}

func (m *memoryBackend) Delete(ctx context.Context, key keychain.SecretKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists {
		return keychain.ErrEntryNotFound
	}
	delete(m.entries, key)
	return nil
}

func init() {
	if err := keychain.Register(Name, New); err != nil {
		panic(err.Error())
	}
}

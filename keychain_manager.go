package keychain

import (
	"fmt"
	"sync"
)

var (
	instance *SecretStore
	backends = make(map[string]BackendInit)
	lock     sync.RWMutex
)

// Instance returns the instance set via SetInstance. nil if not set.
func Instance() *SecretStore {
	return instance
}

// SetInstance sets the singleton instance used by the package level Write,
// Read and Delete operations.
func SetInstance(store *SecretStore) error {
	if instance == nil {
		lock.Lock()
		defer lock.Unlock()
		if instance == nil {
			instance = store
			return nil
		}
	}
	return fmt.Errorf("keychain instance is already"+
		" set to %v", instance.String())
}

// New returns a new instance of the backend identified by the supplied
// name. SecretConfig is a map of key value pairs used to configure the
// backend; parameters not present in the map fall back to the environment.
func New(
	name string,
	secretConfig map[string]interface{},
) (Backend, error) {
	// The constructor runs with the lock released, a backend init may
	// re-enter New to build its members.
	lock.RLock()
	bInit, exists := backends[name]
	lock.RUnlock()

	if exists {
		return bInit(secretConfig)
	}
	return nil, ErrNotSupported
}

// Register adds a new backend
func Register(name string, bInit BackendInit) error {
	lock.Lock()
	defer lock.Unlock()
	if _, exists := backends[name]; exists {
		return fmt.Errorf("keychain backend %v is already"+
			" registered", name)
	}
	backends[name] = bInit
	return nil
}

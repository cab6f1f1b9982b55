// Package keyring stores secrets in the operating system keyring through
// zalando/go-keyring: Keychain on macOS, Credential Manager on Windows and
// the Secret Service D-Bus API on Linux. Values are base64 encoded before
// they reach the platform so that arbitrary bytes survive string typed
// stores. Ordering between concurrent writers to the same key is the
// platform's own, commonly last writer wins.
package keyring

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"

	"github.com/libopenstorage/keychain"
)

const (
	Name = keychain.TypeKeyring
	// KeyringServicePrefix optionally namespaces the service half of every
	// key before it reaches the platform store, so that entries written by
	// different applications through this library do not collide.
	KeyringServicePrefix = "KEYCHAIN_KEYRING_PREFIX"
)

type keyringBackend struct {
	servicePrefix string
}

// New returns a backend persisting into the OS keyring. All configuration
// is optional.
func New(
	secretConfig map[string]interface{},
) (keychain.Backend, error) {
	return &keyringBackend{
		servicePrefix: getKeyringParam(secretConfig, KeyringServicePrefix),
	}, nil
}

func (k *keyringBackend) String() string {
	return Name
}

func (k *keyringBackend) Find(ctx context.Context, key keychain.SecretKey) (*keychain.Entry, error) {
	encoded, err := keyring.Get(k.service(key), key.Account)
	if err != nil {
		return nil, convertKeyringErr(err)
	}

	// A stored value that does not decode is a record without a usable
	// payload, not a lookup failure.
	entry := &keychain.Entry{Key: key}
	if value, decodeErr := base64.StdEncoding.DecodeString(encoded); decodeErr == nil {
		entry.Value = value
	}
	return entry, nil
}

func (k *keyringBackend) Insert(ctx context.Context, key keychain.SecretKey, value []byte) error {
	_, err := keyring.Get(k.service(key), key.Account)
	if err == nil {
		return keychain.ErrEntryExists
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return convertKeyringErr(err)
	}
	return k.set(key, value)
}

func (k *keyringBackend) Update(ctx context.Context, key keychain.SecretKey, value []byte) error {
	if _, err := keyring.Get(k.service(key), key.Account); err != nil {
		return convertKeyringErr(err)
	}
	return k.set(key, value)
}

func (k *keyringBackend) Delete(ctx context.Context, key keychain.SecretKey) error {
	if err := keyring.Delete(k.service(key), key.Account); err != nil {
		return convertKeyringErr(err)
	}
	return nil
}

func (k *keyringBackend) set(key keychain.SecretKey, value []byte) error {
	encoded := base64.StdEncoding.EncodeToString(value)
	if err := keyring.Set(k.service(key), key.Account, encoded); err != nil {
		return convertKeyringErr(err)
	}
	return nil
}

func (k *keyringBackend) service(key keychain.SecretKey) string {
	return k.servicePrefix + key.Service
}

func convertKeyringErr(err error) error {
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return keychain.ErrEntryNotFound
	case errors.Is(err, keyring.ErrUnsupportedPlatform):
		return fmt.Errorf("%w: %v", keychain.ErrBackendUnavailable, err)
	default:
		return err
	}
}

func getKeyringParam(secretConfig map[string]interface{}, name string) string {
	if valueIntf, exists := secretConfig[name]; exists {
		if value, ok := valueIntf.(string); ok {
			return value
		}
	}
	return os.Getenv(name)
}

func init() {
	if err := keychain.Register(Name, New); err != nil {
		panic(err.Error())
	}
}

// Package kvdb stores secrets in a portworx/kvdb key-value store, sealed
// with AES-256-GCM. The sealing key is derived from a configured passphrase
// and a per-store salt that is created on first use and persisted next to
// the secrets. Ordering between concurrent writers is the key-value
// store's own.
package kvdb

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"os"

	kv "github.com/portworx/kvdb"

	"github.com/libopenstorage/keychain"
	"github.com/libopenstorage/keychain/pkg/seal"
)

const (
	Name = keychain.TypeKvdb
	// KvdbKey is the secretConfig entry holding the kvdb.Kvdb instance to
	// persist into.
	KvdbKey = "KVDB"
	// KvdbPassphrase is the secretConfig entry (or environment variable)
	// holding the passphrase the sealing key is derived from.
	KvdbPassphrase = "KEYCHAIN_KVDB_PASSPHRASE"

	secretBasePath = "keychain/secrets/"
	saltKey        = "keychain/meta/salt"
)

var (
	// ErrKvdbNotSet returned when the secret config is missing a kvdb
	// instance under KvdbKey.
	ErrKvdbNotSet = errors.New("KVDB instance not set in the secret config")
	// ErrPassphraseNotSet returned when neither the secret config nor the
	// environment provides a sealing passphrase.
	ErrPassphraseNotSet = errors.New("kvdb sealing passphrase not set")
)

type kvdbBackend struct {
	client kv.Kvdb
	sealer *seal.Sealer
}

// New returns a backend persisting into the given kvdb instance. The salt
// for the sealing key is read from the store, or created and stored if
// this is the first use.
func New(
	secretConfig map[string]interface{},
) (keychain.Backend, error) {
	kvdbIntf, exists := secretConfig[KvdbKey]
	if !exists {
		return nil, ErrKvdbNotSet
	}
	kvClient, ok := kvdbIntf.(kv.Kvdb)
	if !ok {
		return nil, ErrKvdbNotSet
	}

	passphrase := getKvdbParam(secretConfig, KvdbPassphrase)
	if passphrase == "" {
		return nil, ErrPassphraseNotSet
	}

	salt, err := loadOrCreateSalt(kvClient)
	if err != nil {
		return nil, err
	}
	sealer, err := seal.New([]byte(passphrase), salt)
	if err != nil {
		return nil, err
	}
	return &kvdbBackend{
		client: kvClient,
		sealer: sealer,
	}, nil
}

func (v *kvdbBackend) String() string {
	return Name
}

func (v *kvdbBackend) Find(ctx context.Context, key keychain.SecretKey) (*keychain.Entry, error) {
	kvp, err := v.client.Get(secretPath(key))
	if err == kv.ErrNotFound {
		return nil, keychain.ErrEntryNotFound
	} else if err != nil {
		return nil, err
	}

	// An envelope that does not decode or open with the configured
	// passphrase is a record without a usable payload.
	entry := &keychain.Entry{Key: key}
	if value, openErr := v.open(kvp.Value); openErr == nil {
		entry.Value = value
	}
	return entry, nil
}

func (v *kvdbBackend) Insert(ctx context.Context, key keychain.SecretKey, value []byte) error {
	encoded, err := v.seal(value)
	if err != nil {
		return err
	}
	_, err = v.client.Create(secretPath(key), encoded, 0)
	if err == kv.ErrExist {
		return keychain.ErrEntryExists
	}
	return err
}

func (v *kvdbBackend) Update(ctx context.Context, key keychain.SecretKey, value []byte) error {
	encoded, err := v.seal(value)
	if err != nil {
		return err
	}
	_, err = v.client.Update(secretPath(key), encoded, 0)
	if err == kv.ErrNotFound {
		return keychain.ErrEntryNotFound
	}
	return err
}

func (v *kvdbBackend) Delete(ctx context.Context, key keychain.SecretKey) error {
	_, err := v.client.Delete(secretPath(key))
	if err == kv.ErrNotFound {
		return keychain.ErrEntryNotFound
	}
	return err
}

func (v *kvdbBackend) seal(value []byte) (string, error) {
	sealed, err := v.sealer.Seal(value)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *kvdbBackend) open(stored []byte) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(string(stored))
	if err != nil {
		return nil, err
	}
	return v.sealer.Open(sealed)
}

func secretPath(key keychain.SecretKey) string {
	return secretBasePath + url.PathEscape(key.Service) + "/" + url.PathEscape(key.Account)
}

func loadOrCreateSalt(client kv.Kvdb) ([]byte, error) {
	kvp, err := client.Get(saltKey)
	if err == nil {
		return base64.StdEncoding.DecodeString(string(kvp.Value))
	}
	if err != kv.ErrNotFound {
		return nil, err
	}

	salt, err := seal.NewSalt()
	if err != nil {
		return nil, err
	}
	_, err = client.Create(saltKey, base64.StdEncoding.EncodeToString(salt), 0)
	if err == nil {
		return salt, nil
	}
	if err != kv.ErrExist {
		return nil, err
	}

	// Another writer stored a salt first, use theirs.
	kvp, err = client.Get(saltKey)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(string(kvp.Value))
}

func getKvdbParam(secretConfig map[string]interface{}, name string) string {
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

// Package file stores secrets as individual sealed files below a
// configured directory, one file per key under
// <path>/secrets/<service>/<account> with both name halves escaped for the
// filesystem. Directories are created 0700 and files 0600. The salt for
// the sealing key lives next to the secrets and is created on first use.
// Ordering between concurrent writers is last writer wins.
package file

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"

	"github.com/libopenstorage/keychain"
	"github.com/libopenstorage/keychain/pkg/seal"
)

const (
	Name = keychain.TypeFile
	// FilePath is the secretConfig entry (or environment variable) holding
	// the directory the store lives in.
	FilePath = "KEYCHAIN_FILE_PATH"
	// FilePassphrase is the secretConfig entry (or environment variable)
	// holding the passphrase the sealing key is derived from.
	FilePassphrase = "KEYCHAIN_FILE_PASSPHRASE"

	secretsDir = "secrets"
	saltFile   = "salt"
)

var (
	// ErrPathNotSet returned when neither the secret config nor the
	// environment provides a store directory.
	ErrPathNotSet = errors.New("file store path not set")
	// ErrPassphraseNotSet returned when neither the secret config nor the
	// environment provides a sealing passphrase.
	ErrPassphraseNotSet = errors.New("file store passphrase not set")
)

type fileBackend struct {
	root   string
	sealer *seal.Sealer
}

// New returns a backend persisting into the configured directory, creating
// it if needed.
func New(
	secretConfig map[string]interface{},
) (keychain.Backend, error) {
	root := getFileParam(secretConfig, FilePath)
	if root == "" {
		return nil, ErrPathNotSet
	}
	passphrase := getFileParam(secretConfig, FilePassphrase)
	if passphrase == "" {
		return nil, ErrPassphraseNotSet
	}

	if err := os.MkdirAll(filepath.Join(root, secretsDir), 0700); err != nil {
		return nil, err
	}
	salt, err := loadOrCreateSalt(root)
	if err != nil {
		return nil, err
	}
	sealer, err := seal.New([]byte(passphrase), salt)
	if err != nil {
		return nil, err
	}
	return &fileBackend{
		root:   root,
		sealer: sealer,
	}, nil
}

func (f *fileBackend) String() string {
	return Name
}

func (f *fileBackend) Find(ctx context.Context, key keychain.SecretKey) (*keychain.Entry, error) {
	sealed, err := os.ReadFile(f.secretPath(key))
	if os.IsNotExist(err) {
		return nil, keychain.ErrEntryNotFound
	} else if err != nil {
		return nil, err
	}

	// An envelope that does not open with the configured passphrase is a
	// record without a usable payload.
	entry := &keychain.Entry{Key: key}
	if value, openErr := f.sealer.Open(sealed); openErr == nil {
		entry.Value = value
	}
	return entry, nil
}

func (f *fileBackend) Insert(ctx context.Context, key keychain.SecretKey, value []byte) error {
	sealed, err := f.sealer.Seal(value)
	if err != nil {
		return err
	}
	path := f.secretPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if os.IsExist(err) {
		return keychain.ErrEntryExists
	} else if err != nil {
		return err
	}
	if _, err := file.Write(sealed); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (f *fileBackend) Update(ctx context.Context, key keychain.SecretKey, value []byte) error {
	path := f.secretPath(key)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return keychain.ErrEntryNotFound
	} else if err != nil {
		return err
	}

	sealed, err := f.sealer.Seal(value)
	if err != nil {
		return err
	}
	return os.WriteFile(path, sealed, 0600)
}

func (f *fileBackend) Delete(ctx context.Context, key keychain.SecretKey) error {
	err := os.Remove(f.secretPath(key))
	if os.IsNotExist(err) {
		return keychain.ErrEntryNotFound
	}
	return err
}

func (f *fileBackend) secretPath(key keychain.SecretKey) string {
	return filepath.Join(f.root, secretsDir, escape(key.Service), escape(key.Account))
}

// escape makes a key component safe to use as a file name. The bare marker
// for the empty component cannot collide, QueryEscape always hex-encodes
// the percent sign.
func escape(component string) string {
	if component == "" {
		return "%"
	}
	return url.QueryEscape(component)
}

func loadOrCreateSalt(root string) ([]byte, error) {
	path := filepath.Join(root, saltFile)
	salt, err := os.ReadFile(path)
	if err == nil {
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	salt, err = seal.NewSalt()
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if os.IsExist(err) {
		// Another writer stored a salt first, use theirs.
		return os.ReadFile(path)
	} else if err != nil {
		return nil, err
	}
	if _, err := file.Write(salt); err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, err
	}
	return salt, nil
}

func getFileParam(secretConfig map[string]interface{}, name string) string {
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

//go:build darwin

package macos

import (
	"context"
	"errors"
	"fmt"
	"os"

	gokeychain "github.com/keybase/go-keychain"

	"github.com/libopenstorage/keychain"
)

type macosBackend struct {
	accessGroup string
	label       string
}

// New returns a backend persisting into the login keychain of the current
// user. All configuration is optional.
func New(
	secretConfig map[string]interface{},
) (keychain.Backend, error) {
	return &macosBackend{
		accessGroup: getMacOSParam(secretConfig, MacOSAccessGroup),
		label:       getMacOSParam(secretConfig, MacOSLabel),
	}, nil
}

func (m *macosBackend) String() string {
	return Name
}

func (m *macosBackend) Find(ctx context.Context, key keychain.SecretKey) (*keychain.Entry, error) {
	query := m.query(key)
	query.SetMatchLimit(gokeychain.MatchLimitOne)
	query.SetReturnData(true)

	results, err := gokeychain.QueryItem(query)
	if err != nil {
		return nil, convertKeychainErr(err)
	}
	if len(results) == 0 {
		return nil, keychain.ErrEntryNotFound
	}

	value := results[0].Data
	if value == nil {
		value = []byte{}
	}
	return &keychain.Entry{Key: key, Value: value}, nil
}

func (m *macosBackend) Insert(ctx context.Context, key keychain.SecretKey, value []byte) error {
	item := m.query(key)
	item.SetData(value)
	item.SetSynchronizable(gokeychain.SynchronizableNo)
	item.SetAccessible(gokeychain.AccessibleWhenUnlocked)
	if m.label != "" {
		item.SetLabel(m.label)
	}
	if err := gokeychain.AddItem(item); err != nil {
		return convertKeychainErr(err)
	}
	return nil
}

func (m *macosBackend) Update(ctx context.Context, key keychain.SecretKey, value []byte) error {
	item := gokeychain.NewItem()
	item.SetData(value)
	if err := gokeychain.UpdateItem(m.query(key), item); err != nil {
		return convertKeychainErr(err)
	}
	return nil
}

func (m *macosBackend) Delete(ctx context.Context, key keychain.SecretKey) error {
	if err := gokeychain.DeleteItem(m.query(key)); err != nil {
		return convertKeychainErr(err)
	}
	return nil
}

func (m *macosBackend) query(key keychain.SecretKey) gokeychain.Item {
	item := gokeychain.NewItem()
	item.SetSecClass(gokeychain.SecClassGenericPassword)
	item.SetService(key.Service)
	item.SetAccount(key.Account)
	if m.accessGroup != "" {
		item.SetAccessGroup(m.accessGroup)
	}
	return item
}

func convertKeychainErr(err error) error {
	switch {
	case errors.Is(err, gokeychain.ErrorItemNotFound):
		return keychain.ErrEntryNotFound
	case errors.Is(err, gokeychain.ErrorDuplicateItem):
		return keychain.ErrEntryExists
	case errors.Is(err, gokeychain.ErrorNotAvailable),
		errors.Is(err, gokeychain.ErrorNoSuchKeychain):
		return fmt.Errorf("%w: %v", keychain.ErrBackendUnavailable, err)
	default:
		return err
	}
}

func getMacOSParam(secretConfig map[string]interface{}, name string) string {
	if valueIntf, exists := secretConfig[name]; exists {
		if value, ok := valueIntf.(string); ok {
			return value
		}
	}
	return os.Getenv(name)
}

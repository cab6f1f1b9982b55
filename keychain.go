// Package keychain provides a small facade over platform secret stores.
// A secret is an opaque byte sequence identified by a (service, account)
// pair; the facade translates write, read and delete operations into calls
// against a pluggable storage backend and maps backend status codes onto a
// typed error taxonomy. All durability, isolation and encryption at rest
// guarantees belong to the backend.
package keychain

import (
	"context"
	"fmt"
)

// Names of the backends shipped with this library. Importing a backend
// package registers it under its name.
const (
	TypeKeyring       = "keyring"
	TypeMacOSKeychain = "macos-keychain"
	TypeKvdb          = "kvdb"
	TypeFile          = "file"
	TypeMemory        = "memory"
	TypePass          = "pass"
	TypeChain         = "chain"
)

// SecretKey identifies at most one stored secret. Service is the logical
// namespace, typically an application or protocol identifier, and Account
// names the specific credential within it. Keys are used only for lookup
// and are never persisted beyond what the backend requires.
type SecretKey struct {
	Service string
	Account string
}

func (k SecretKey) String() string {
	return fmt.Sprintf("%s/%s", k.Service, k.Account)
}

// Entry is the backend owned record for a SecretKey. A nil Value means the
// backend holds a record for the key but no retrievable payload.
type Entry struct {
	Key   SecretKey
	Value []byte
}

// Backend is implemented by platform secret stores. Implementations map
// their native status codes onto the sentinel errors of this package and
// keep the native code wrapped inside the returned error as a diagnostic.
type Backend interface {
	// String representation of the backend
	String() string

	// Find returns the entry stored for key. It returns ErrEntryNotFound
	// only when the backend definitively reports absence; any other error
	// means the lookup itself failed.
	Find(ctx context.Context, key SecretKey) (*Entry, error)

	// Insert creates a new entry for key. It returns ErrEntryExists when
	// an entry is already present.
	Insert(ctx context.Context, key SecretKey, value []byte) error

	// Update overwrites the value of the existing entry for key. It
	// returns ErrEntryNotFound when no entry is present.
	Update(ctx context.Context, key SecretKey, value []byte) error

	// Delete removes the entry for key. It returns ErrEntryNotFound when
	// no entry is present.
	Delete(ctx context.Context, key SecretKey) error
}

// BackendInit constructs a backend from the supplied configuration map.
type BackendInit func(
	secretConfig map[string]interface{},
) (Backend, error)

package keychain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSupported returned when no backend is registered under the requested name
	ErrNotSupported = errors.New("backend implementation not supported")
	// ErrInstanceNotSet returned by the package level operations before SetInstance is called
	ErrInstanceNotSet = errors.New("keychain instance not set")
	// ErrEntryNotFound returned by a backend when no entry exists for the key
	ErrEntryNotFound = errors.New("no entry found for the secret key")
	// ErrEntryExists returned by a backend when an insert collides with an existing entry
	ErrEntryExists = errors.New("an entry already exists for the secret key")
	// ErrBackendUnavailable returned when the platform secret store cannot be used on this host
	ErrBackendUnavailable = errors.New("secret storage backend unavailable")
)

// ErrItemNotFound is returned by Read when no secret is stored for the key.
// Absence is an expected state, not a failure of the backend.
type ErrItemNotFound struct {
	// Key is the secret key that was looked up
	Key SecretKey
}

func (e *ErrItemNotFound) Error() string {
	return fmt.Sprintf("no secret found for %v", e.Key)
}

func (e *ErrItemNotFound) Unwrap() error {
	return ErrEntryNotFound
}

// ErrItemHasNoData is returned by Read when the backend holds a record for
// the key but the record carries no retrievable value payload.
type ErrItemHasNoData struct {
	// Key is the secret key that was looked up
	Key SecretKey
}

func (e *ErrItemHasNoData) Error() string {
	return fmt.Sprintf("no secret data found for %v", e.Key)
}

// ErrReadFailure wraps a backend status from a failed lookup that is
// neither success nor a definitive not found.
type ErrReadFailure struct {
	// Err is the backend status, kept as an opaque diagnostic
	Err error
}

func (e *ErrReadFailure) Error() string {
	return fmt.Sprintf("failed to read secret: %v", e.Err)
}

func (e *ErrReadFailure) Unwrap() error {
	return e.Err
}

// ErrWriteFailure wraps a backend status from a failed insert or update.
type ErrWriteFailure struct {
	// Err is the backend status, kept as an opaque diagnostic
	Err error
}

func (e *ErrWriteFailure) Error() string {
	return fmt.Sprintf("failed to write secret: %v", e.Err)
}

func (e *ErrWriteFailure) Unwrap() error {
	return e.Err
}

// ErrDeleteFailure wraps a backend status from a failed delete that is not
// a not found.
type ErrDeleteFailure struct {
	// Err is the backend status, kept as an opaque diagnostic
	Err error
}

func (e *ErrDeleteFailure) Error() string {
	return fmt.Sprintf("failed to delete secret: %v", e.Err)
}

func (e *ErrDeleteFailure) Unwrap() error {
	return e.Err
}

// IsItemNotFound reports whether err indicates that no secret is stored for
// the requested key.
func IsItemNotFound(err error) bool {
	var notFound *ErrItemNotFound
	return errors.As(err, &notFound)
}

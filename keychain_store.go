package keychain

import (
	"context"
	"errors"
)

// SecretStore performs the three secret operations against a Backend. It
// holds no state besides the backend and no client side locks; it is safe
// for concurrent use, and ordering between concurrent writers to the same
// key is whatever the backend itself provides.
type SecretStore struct {
	backend Backend
}

// NewSecretStore returns a SecretStore backed by the supplied backend.
func NewSecretStore(backend Backend) *SecretStore {
	return &SecretStore{backend: backend}
}

// String representation of the underlying backend.
func (s *SecretStore) String() string {
	return s.backend.String()
}

// Write stores value under key as an idempotent upsert: an existing entry
// is overwritten in place, a missing one is created. Only a probe that
// definitively reports absence leads to an insert; a probe that fails for
// any other reason is surfaced and never treated as absence.
func (s *SecretStore) Write(ctx context.Context, key SecretKey, value []byte) error {
	_, err := s.backend.Find(ctx, key)
	switch {
	case err == nil:
		if err := s.backend.Update(ctx, key, value); err != nil {
			return &ErrWriteFailure{Err: err}
		}
		return nil
	case errors.Is(err, ErrEntryNotFound):
		if err := s.backend.Insert(ctx, key, value); err != nil {
			return &ErrWriteFailure{Err: err}
		}
		return nil
	default:
		return &ErrReadFailure{Err: err}
	}
}

// Read returns the bytes most recently written for key. It never mutates
// the entry. The lookup is constrained to at most one match; resolving
// ambiguity is the backend's responsibility.
func (s *SecretStore) Read(ctx context.Context, key SecretKey) ([]byte, error) {
	entry, err := s.backend.Find(ctx, key)
	switch {
	case err == nil:
		if entry == nil || entry.Value == nil {
			return nil, &ErrItemHasNoData{Key: key}
		}
		return entry.Value, nil
	case errors.Is(err, ErrEntryNotFound):
		return nil, &ErrItemNotFound{Key: key}
	default:
		return nil, &ErrReadFailure{Err: err}
	}
}

// Delete removes the entry for key. Deleting a key that has no entry is a
// success, so the operation is idempotent.
func (s *SecretStore) Delete(ctx context.Context, key SecretKey) error {
	if err := s.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrEntryNotFound) {
		return &ErrDeleteFailure{Err: err}
	}
	return nil
}

// Write stores value under key using the instance set via SetInstance.
func Write(ctx context.Context, key SecretKey, value []byte) error {
	s := Instance()
	if s == nil {
		return ErrInstanceNotSet
	}
	return s.Write(ctx, key, value)
}

// Read returns the secret stored for key using the instance set via
// SetInstance.
func Read(ctx context.Context, key SecretKey) ([]byte, error) {
	s := Instance()
	if s == nil {
		return nil, ErrInstanceNotSet
	}
	return s.Read(ctx, key)
}

// Delete removes the secret stored for key using the instance set via
// SetInstance.
func Delete(ctx context.Context, key SecretKey) error {
	s := Instance()
	if s == nil {
		return ErrInstanceNotSet
	}
	return s.Delete(ctx, key)
}

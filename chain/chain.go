// Package chain combines a primary and a fallback backend. Every
// operation goes to the primary; the fallback is consulted only when the
// primary reports ErrBackendUnavailable. Authoritative answers from the
// primary, including absence, never fail over, and neither does context
// cancellation. The first failover is logged once per chain.
package chain

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/libopenstorage/keychain"
)

const (
	Name = keychain.TypeChain
	// ChainPrimary is the secretConfig entry naming the primary backend, or
	// holding an already constructed Backend instance.
	ChainPrimary = "KEYCHAIN_CHAIN_PRIMARY"
	// ChainFallback is the secretConfig entry naming the fallback backend,
	// or holding an already constructed Backend instance.
	ChainFallback = "KEYCHAIN_CHAIN_FALLBACK"
)

var (
	// ErrPrimaryNotSet returned when the secret config does not identify a
	// primary backend.
	ErrPrimaryNotSet = errors.New("chain primary backend not set")
	// ErrFallbackNotSet returned when the secret config does not identify a
	// fallback backend.
	ErrFallbackNotSet = errors.New("chain fallback backend not set")
)

type chainBackend struct {
	primary  keychain.Backend
	fallback keychain.Backend
	warnOnce sync.Once
}

// New builds the two member backends from the secret config. Members named
// by string are constructed through the registry with the same config;
// configs may instead carry ready Backend instances.
func New(
	secretConfig map[string]interface{},
) (keychain.Backend, error) {
	primary, err := memberFromConfig(secretConfig, ChainPrimary, ErrPrimaryNotSet)
	if err != nil {
		return nil, err
	}
	fallback, err := memberFromConfig(secretConfig, ChainFallback, ErrFallbackNotSet)
	if err != nil {
		return nil, err
	}
	return NewWithBackends(primary, fallback)
}

// NewWithBackends returns a chain over already constructed members.
func NewWithBackends(primary, fallback keychain.Backend) (keychain.Backend, error) {
	if primary == nil {
		return nil, ErrPrimaryNotSet
	}
	if fallback == nil {
		return nil, ErrFallbackNotSet
	}
	return &chainBackend{
		primary:  primary,
		fallback: fallback,
	}, nil
}

func (c *chainBackend) String() string {
	return Name
}

func (c *chainBackend) Find(ctx context.Context, key keychain.SecretKey) (*keychain.Entry, error) {
	entry, err := c.primary.Find(ctx, key)
	if !c.failover(err) {
		return entry, err
	}
	return c.fallback.Find(ctx, key)
}

func (c *chainBackend) Insert(ctx context.Context, key keychain.SecretKey, value []byte) error {
	err := c.primary.Insert(ctx, key, value)
	if !c.failover(err) {
		return err
	}
	return c.fallback.Insert(ctx, key, value)
}

func (c *chainBackend) Update(ctx context.Context, key keychain.SecretKey, value []byte) error {
	err := c.primary.Update(ctx, key, value)
	if !c.failover(err) {
		return err
	}
	return c.fallback.Update(ctx, key, value)
}

func (c *chainBackend) Delete(ctx context.Context, key keychain.SecretKey) error {
	err := c.primary.Delete(ctx, key)
	if !c.failover(err) {
		return err
	}
	return c.fallback.Delete(ctx, key)
}

// failover reports whether the fallback should serve instead. Only
// ErrBackendUnavailable from the primary qualifies.
func (c *chainBackend) failover(err error) bool {
	if err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if !errors.Is(err, keychain.ErrBackendUnavailable) {
		return false
	}
	c.warnOnce.Do(func() {
		logrus.Warnf("chain: primary backend %q unavailable, falling back to %q",
			c.primary.String(), c.fallback.String())
	})
	return true
}

func memberFromConfig(
	secretConfig map[string]interface{},
	name string,
	notSet error,
) (keychain.Backend, error) {
	valueIntf, exists := secretConfig[name]
	if !exists {
		if env := os.Getenv(name); env != "" {
			return keychain.New(env, secretConfig)
		}
		return nil, notSet
	}
	switch value := valueIntf.(type) {
	case keychain.Backend:
		return value, nil
	case string:
		return keychain.New(value, secretConfig)
	}
	return nil, notSet
}

func init() {
	if err := keychain.Register(Name, New); err != nil {
		panic(err.Error())
	}
}

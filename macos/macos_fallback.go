//go:build !darwin

package macos

import (
	"fmt"
	"runtime"

	"github.com/libopenstorage/keychain"
)

// New fails on every platform but darwin. The backend stays registered so
// that callers selecting it by name get a typed error instead of an
// unknown backend.
func New(
	secretConfig map[string]interface{},
) (keychain.Backend, error) {
	return nil, fmt.Errorf("%w: macOS keychain is not available on %s",
		keychain.ErrBackendUnavailable, runtime.GOOS)
}

// Package macos stores secrets as generic password items in the native
// macOS Keychain through keybase/go-keychain. It talks to the Security
// framework directly rather than through the portable keyring shims, which
// gives access to item attributes such as the access group and label.
// The Security framework serializes item access, so concurrent writers to
// the same key resolve to last writer wins. On every other platform New
// fails with ErrBackendUnavailable.
package macos

import (
	"github.com/libopenstorage/keychain"
)

const (
	Name = keychain.TypeMacOSKeychain
	// MacOSAccessGroup restricts the created items to a keychain access
	// group shared between applications of one developer team.
	MacOSAccessGroup = "KEYCHAIN_MACOS_ACCESS_GROUP"
	// MacOSLabel sets the human readable label shown for the items in the
	// Keychain Access application.
	MacOSLabel = "KEYCHAIN_MACOS_LABEL"
)

func init() {
	if err := keychain.Register(Name, New); err != nil {
		panic(err.Error())
	}
}

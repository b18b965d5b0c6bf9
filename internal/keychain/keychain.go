// Package keychain provides secret storage backed by the platform's native
// secret store.
//
// Secrets are addressed by a (service, account) pair. The sshproxy password
// lives under ("NERSC", user) and the TOTP seed under ("NERSC_SECRET", user).
//
// Exactly one backend is compiled in per platform:
//   - darwin: macOS Keychain generic passwords, scoped with
//     kSecAttrAccessibleWhenUnlockedThisDeviceOnly and never synced to iCloud.
//   - linux: the kernel user keyring (keyctl "user" keys).
//
// Any other platform gets a SystemStore whose every call fails with
// ErrUnavailable. There is no fallback between stores.
package keychain

import "errors"

var (
	// ErrNotFound is returned when a secret does not exist in the store.
	ErrNotFound = errors.New("secret not found")

	// ErrUnavailable is returned when the backing store cannot be reached:
	// a locked keychain, a missing keyring, or a permission failure.
	ErrUnavailable = errors.New("secret store unavailable")
)

// Store is the interface for secret storage operations.
type Store interface {
	// Get returns the secret for (service, account), or an error wrapping
	// ErrNotFound if it has never been stored.
	Get(service, account string) (string, error)

	// Set stores a secret, replacing any existing value for the same key.
	Set(service, account, value string) error

	// Delete removes a secret. Deleting an absent secret is not an error.
	Delete(service, account string) error
}

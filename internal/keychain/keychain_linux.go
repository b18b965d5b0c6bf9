//go:build linux

package keychain

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

const keyType = "user"

// SystemStore provides secret operations against the kernel user keyring.
//
// Keys are "user" type keys described as "<service>:<account>" and linked
// into the user keyring (@u). That keyring lives as long as the UID has a
// running process: closing one login session keeps it if another (or a
// systemd user manager) is still alive, logging out completely or
// rebooting discards it.
type SystemStore struct {
	keyring int
}

// NewSystemStore creates a new keyring-backed secret store.
func NewSystemStore() *SystemStore {
	return &SystemStore{keyring: unix.KEY_SPEC_USER_KEYRING}
}

// Backend names the store for status output.
func (s *SystemStore) Backend() string {
	return "Linux user keyring"
}

func description(service, account string) string {
	return service + ":" + account
}

func (s *SystemStore) search(service, account string) (int, error) {
	id, err := unix.KeyctlSearch(s.keyring, keyType, description(service, account), 0)
	if err != nil {
		if errors.Is(err, unix.ENOKEY) || errors.Is(err, unix.EKEYEXPIRED) || errors.Is(err, unix.EKEYREVOKED) {
			return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, service, account)
		}
		return 0, fmt.Errorf("%w: keyring search %s/%s: %w", ErrUnavailable, service, account, err)
	}
	return id, nil
}

// Set stores a secret. add_key(2) updates the payload in place when a key
// with the same type and description is already linked into the keyring.
func (s *SystemStore) Set(service, account, value string) error {
	if _, err := unix.AddKey(keyType, description(service, account), []byte(value), s.keyring); err != nil {
		return fmt.Errorf("%w: keyring add %s/%s: %w", ErrUnavailable, service, account, err)
	}
	return nil
}

// Get retrieves a secret from the keyring.
func (s *SystemStore) Get(service, account string) (string, error) {
	id, err := s.search(service, account)
	if err != nil {
		return "", err
	}

	// KEYCTL_READ returns the payload size regardless of the buffer passed.
	size, err := unix.KeyctlBuffer(unix.KEYCTL_READ, id, nil, 0)
	if err != nil {
		return "", fmt.Errorf("%w: keyring read %s/%s: %w", ErrUnavailable, service, account, err)
	}
	buf := make([]byte, size)
	n, err := unix.KeyctlBuffer(unix.KEYCTL_READ, id, buf, 0)
	if err != nil {
		return "", fmt.Errorf("%w: keyring read %s/%s: %w", ErrUnavailable, service, account, err)
	}
	if n > len(buf) {
		n = len(buf)
	}
	return string(buf[:n]), nil
}

// Delete unlinks a secret from the keyring.
func (s *SystemStore) Delete(service, account string) error {
	id, err := s.search(service, account)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if _, err := unix.KeyctlInt(unix.KEYCTL_UNLINK, id, s.keyring, 0, 0); err != nil {
		return fmt.Errorf("%w: keyring unlink %s/%s: %w", ErrUnavailable, service, account, err)
	}
	return nil
}

//go:build darwin

package keychain

import (
	"errors"
	"fmt"

	gokeychain "github.com/keybase/go-keychain"
)

// SystemStore provides secret operations against the macOS Keychain.
type SystemStore struct{}

// NewSystemStore creates a new Keychain-backed secret store.
func NewSystemStore() *SystemStore {
	return &SystemStore{}
}

// Backend names the store for status output.
func (s *SystemStore) Backend() string {
	return "macOS Keychain"
}

// Set stores a secret in the Keychain. An existing item is updated in
// place so a failed write never loses the previous value.
func (s *SystemStore) Set(service, account, value string) error {
	query := gokeychain.NewItem()
	query.SetSecClass(gokeychain.SecClassGenericPassword)
	query.SetService(service)
	query.SetAccount(account)

	update := gokeychain.NewItem()
	update.SetData([]byte(value))

	err := gokeychain.UpdateItem(query, update)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gokeychain.ErrorItemNotFound) {
		return fmt.Errorf("%w: keychain update %s/%s: %w", ErrUnavailable, service, account, err)
	}

	item := gokeychain.NewGenericPassword(
		service,
		account,
		fmt.Sprintf("sshproxy: %s (%s)", service, account),
		[]byte(value),
		"",
	)
	item.SetSynchronizable(gokeychain.SynchronizableNo)
	item.SetAccessible(gokeychain.AccessibleWhenUnlockedThisDeviceOnly)

	if err := gokeychain.AddItem(item); err != nil {
		return fmt.Errorf("%w: keychain add %s/%s: %w", ErrUnavailable, service, account, err)
	}
	return nil
}

// Get retrieves a secret from the Keychain.
func (s *SystemStore) Get(service, account string) (string, error) {
	data, err := gokeychain.GetGenericPassword(service, account, "", "")
	if err != nil {
		if errors.Is(err, gokeychain.ErrorItemNotFound) {
			return "", fmt.Errorf("%w: %s/%s", ErrNotFound, service, account)
		}
		return "", fmt.Errorf("%w: keychain get %s/%s: %w", ErrUnavailable, service, account, err)
	}
	// go-keychain reports a missing item as (nil, nil).
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, service, account)
	}
	return string(data), nil
}

// Delete removes a secret from the Keychain.
func (s *SystemStore) Delete(service, account string) error {
	err := gokeychain.DeleteGenericPasswordItem(service, account)
	if err != nil && !errors.Is(err, gokeychain.ErrorItemNotFound) {
		return fmt.Errorf("%w: keychain delete %s/%s: %w", ErrUnavailable, service, account, err)
	}
	return nil
}

//go:build !darwin && !linux

package keychain

import (
	"fmt"
	"runtime"
)

// SystemStore on unsupported platforms refuses every operation. Secrets are
// never silently kept somewhere less safe.
type SystemStore struct{}

// NewSystemStore returns a store that reports ErrUnavailable.
func NewSystemStore() *SystemStore {
	return &SystemStore{}
}

// Backend names the store for status output.
func (s *SystemStore) Backend() string {
	return "unsupported (" + runtime.GOOS + ")"
}

func (s *SystemStore) Set(service, account, value string) error {
	return fmt.Errorf("%w: no native secret store on %s", ErrUnavailable, runtime.GOOS)
}

func (s *SystemStore) Get(service, account string) (string, error) {
	return "", fmt.Errorf("%w: no native secret store on %s", ErrUnavailable, runtime.GOOS)
}

func (s *SystemStore) Delete(service, account string) error {
	return fmt.Errorf("%w: no native secret store on %s", ErrUnavailable, runtime.GOOS)
}

//go:build integration && (darwin || linux)

package keychain

import (
	"errors"
	"testing"
)

// Integration tests use the real platform store.
// Run with: go test -tags integration ./internal/keychain/
//
// On macOS this requires an unlocked login Keychain and an interactive
// session (first run may prompt for Keychain access approval).

const integrationService = "SSHPROXY_TEST"

func cleanupIntegration(t *testing.T, s *SystemStore, accounts ...string) {
	t.Helper()
	for _, a := range accounts {
		s.Delete(integrationService, a)
	}
}

func TestSystemStoreSetAndGet(t *testing.T) {
	s := NewSystemStore()
	account := "integration-set-get"
	defer cleanupIntegration(t, s, account)

	if err := s.Set(integrationService, account, "hello-store"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	val, err := s.Get(integrationService, account)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "hello-store" {
		t.Errorf("expected 'hello-store', got %q", val)
	}
}

func TestSystemStoreOverwrite(t *testing.T) {
	s := NewSystemStore()
	account := "integration-overwrite"
	defer cleanupIntegration(t, s, account)

	s.Set(integrationService, account, "first")
	s.Set(integrationService, account, "second")

	val, err := s.Get(integrationService, account)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "second" {
		t.Errorf("expected 'second', got %q", val)
	}
}

func TestSystemStoreOverwriteKeepsOneItem(t *testing.T) {
	s := NewSystemStore()
	account := "integration-overwrite-delete"
	defer cleanupIntegration(t, s, account)

	for _, v := range []string{"first", "second", "third"} {
		if err := s.Set(integrationService, account, v); err != nil {
			t.Fatalf("Set(%q): %v", v, err)
		}
	}

	// A single Delete must remove the secret; overwrites never add a
	// second copy.
	if err := s.Delete(integrationService, account); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(integrationService, account); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSystemStoreNotFound(t *testing.T) {
	s := NewSystemStore()

	_, err := s.Get(integrationService, "integration-never-set")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSystemStoreDelete(t *testing.T) {
	s := NewSystemStore()
	account := "integration-delete"

	s.Set(integrationService, account, "to-delete")
	if err := s.Delete(integrationService, account); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := s.Get(integrationService, account); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

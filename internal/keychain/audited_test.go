package keychain

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benaskins/sshproxy/internal/audit"
)

func setupAuditedStore(t *testing.T) (*AuditedStore, string) {
	t.Helper()
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.log")
	metaPath := filepath.Join(dir, "secret-metadata.json")

	auditLog, err := audit.NewLogger(auditPath)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	t.Cleanup(func() { auditLog.Close() })

	meta, err := NewMetadataStore(metaPath)
	if err != nil {
		t.Fatalf("NewMetadataStore: %v", err)
	}

	store := NewAuditedStore(NewMemoryStore(), auditLog, meta, "cli")
	return store, auditPath
}

func readAuditEntries(t *testing.T, path string) []audit.Entry {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	entries := make([]audit.Entry, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		var e audit.Entry
		json.Unmarshal([]byte(line), &e)
		entries = append(entries, e)
	}
	return entries
}

func TestAuditedStoreSetLogsWrite(t *testing.T) {
	store, auditPath := setupAuditedStore(t)

	store.Set("NERSC", "alice", "hunter2")

	entries := readAuditEntries(t, auditPath)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Action != audit.ActionSecretWrite {
		t.Errorf("expected secret_write, got %v", entries[0].Action)
	}
	if entries[0].Key != "NERSC/alice" {
		t.Errorf("expected NERSC/alice, got %q", entries[0].Key)
	}
	if entries[0].Trigger != "prompt" {
		t.Errorf("expected prompt, got %q", entries[0].Trigger)
	}
}

func TestAuditedStoreNeverLogsValue(t *testing.T) {
	store, auditPath := setupAuditedStore(t)

	store.Set("NERSC", "alice", "super-secret-value")
	store.Get("NERSC", "alice")

	data, _ := os.ReadFile(auditPath)
	if strings.Contains(string(data), "super-secret-value") {
		t.Error("audit log contains the secret value")
	}
}

func TestAuditedStoreGetLogsRead(t *testing.T) {
	store, auditPath := setupAuditedStore(t)

	store.Set("NERSC", "alice", "val")
	store.Get("NERSC", "alice")

	entries := readAuditEntries(t, auditPath)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Action != audit.ActionSecretRead {
		t.Errorf("expected secret_read, got %v", entries[1].Action)
	}
}

func TestAuditedStoreGetNotFoundPreserved(t *testing.T) {
	store, _ := setupAuditedStore(t)

	_, err := store.Get("NERSC", "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound through wrapper, got %v", err)
	}
}

func TestAuditedStoreDeleteLogsDelete(t *testing.T) {
	store, auditPath := setupAuditedStore(t)

	store.Set("NERSC", "alice", "val")
	store.Delete("NERSC", "alice")

	entries := readAuditEntries(t, auditPath)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Action != audit.ActionSecretDelete {
		t.Errorf("expected secret_delete, got %v", entries[1].Action)
	}
	if store.Metadata().Get("NERSC/alice") != nil {
		t.Error("expected metadata to be removed")
	}
}

func TestAuditedStoreSetFromCommand(t *testing.T) {
	store, auditPath := setupAuditedStore(t)

	if err := store.SetFromCommand("NERSC", "alice", "echo from-helper", nil); err != nil {
		t.Fatalf("SetFromCommand: %v", err)
	}

	val, err := store.Get("NERSC", "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "from-helper" {
		t.Errorf("expected 'from-helper', got %q", val)
	}

	entries := readAuditEntries(t, auditPath)
	if entries[0].Command != "echo from-helper" {
		t.Errorf("expected command recorded, got %q", entries[0].Command)
	}

	meta := store.Metadata().Get("NERSC/alice")
	if meta == nil {
		t.Fatal("expected metadata")
	}
	if meta.Source != "command" {
		t.Errorf("expected source command, got %q", meta.Source)
	}
}

func TestAuditedStoreSetFromCommandFailure(t *testing.T) {
	store, auditPath := setupAuditedStore(t)

	store.Set("NERSC", "alice", "original")

	if err := store.SetFromCommand("NERSC", "alice", "exit 1", nil); err == nil {
		t.Error("expected error from failing command")
	}

	val, _ := store.Get("NERSC", "alice")
	if val != "original" {
		t.Errorf("expected original value preserved, got %q", val)
	}

	entries := readAuditEntries(t, auditPath)
	if entries[1].Error == "" {
		t.Error("expected error in audit entry")
	}
}

func TestAuditedStoreSetFromCommandRejected(t *testing.T) {
	store, auditPath := setupAuditedStore(t)
	store.Set("NERSC_SECRET", "alice", "GEZDGNBVGY3TQOJQ")

	errBadSeed := errors.New("bad seed")
	validate := func(v string) error {
		if v == "not-base32!" {
			return errBadSeed
		}
		return nil
	}

	err := store.SetFromCommand("NERSC_SECRET", "alice", "echo not-base32!", validate)
	if !errors.Is(err, errBadSeed) {
		t.Fatalf("expected validation error, got %v", err)
	}

	val, _ := store.Get("NERSC_SECRET", "alice")
	if val != "GEZDGNBVGY3TQOJQ" {
		t.Errorf("expected previous value kept, got %q", val)
	}

	entries := readAuditEntries(t, auditPath)
	if entries[1].Error == "" || entries[1].Trigger != "command" {
		t.Errorf("expected failed command write in audit, got %+v", entries[1])
	}
	if strings.Contains(entries[1].Error, "not-base32!") {
		t.Error("rejected value leaked into the audit log")
	}
	if meta := store.Metadata().Get("NERSC_SECRET/alice"); meta.Source != "prompt" {
		t.Errorf("metadata source = %q, want prompt", meta.Source)
	}
}

func TestAuditedStoreSetFromRecordsSource(t *testing.T) {
	store, auditPath := setupAuditedStore(t)

	if err := store.SetFrom("NERSC", "alice", "hunter2", "stdin"); err != nil {
		t.Fatalf("SetFrom: %v", err)
	}

	entries := readAuditEntries(t, auditPath)
	if entries[0].Trigger != "stdin" {
		t.Errorf("trigger = %q, want stdin", entries[0].Trigger)
	}
	if meta := store.Metadata().Get("NERSC/alice"); meta == nil || meta.Source != "stdin" {
		t.Errorf("metadata = %+v, want source stdin", meta)
	}
}

func TestMetadataStorePersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.json")

	ms1, _ := NewMetadataStore(path)
	ms1.Set("NERSC/alice", &SecretMetadata{Source: "stdin"})

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600, got %o", info.Mode().Perm())
	}

	ms2, _ := NewMetadataStore(path)
	meta := ms2.Get("NERSC/alice")
	if meta == nil {
		t.Fatal("expected metadata after reload")
	}
	if meta.Source != "stdin" {
		t.Errorf("expected stdin, got %q", meta.Source)
	}
}

package keychain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/benaskins/sshproxy/internal/audit"
	"github.com/benaskins/sshproxy/internal/securefile"
)

// SecretMetadata records when a secret was stored. It never holds the value.
type SecretMetadata struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source,omitempty"` // "prompt", "stdin", "command"
}

// MetadataStore persists secret metadata to a JSON file.
type MetadataStore struct {
	mu       sync.RWMutex
	path     string
	metadata map[string]*SecretMetadata
}

// NewMetadataStore loads or creates a metadata file.
func NewMetadataStore(path string) (*MetadataStore, error) {
	ms := &MetadataStore{
		path:     path,
		metadata: make(map[string]*SecretMetadata),
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if jsonErr := json.Unmarshal(data, &ms.metadata); jsonErr != nil {
			slog.Warn("corrupt metadata file, starting fresh", "path", path, "error", jsonErr)
		}
	}

	return ms, nil
}

// MetadataKey is the metadata and audit key for a (service, account) pair.
func MetadataKey(service, account string) string {
	return service + "/" + account
}

// Get returns a copy of the metadata for a key, or nil if not tracked.
func (ms *MetadataStore) Get(key string) *SecretMetadata {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	m, ok := ms.metadata[key]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// Set records metadata for a key and persists to disk.
func (ms *MetadataStore) Set(key string, meta *SecretMetadata) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.metadata[key] = meta
	return ms.save()
}

// Delete removes metadata for a key.
func (ms *MetadataStore) Delete(key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, ok := ms.metadata[key]; !ok {
		return nil
	}
	delete(ms.metadata, key)
	return ms.save()
}

func (ms *MetadataStore) save() error {
	data, err := json.MarshalIndent(ms.metadata, "", "  ")
	if err != nil {
		return err
	}
	return securefile.WriteSecret(ms.path, data, securefile.PrivateMode)
}

// AuditedStore wraps a Store and adds audit logging and metadata tracking.
type AuditedStore struct {
	inner    Store
	audit    audit.Recorder
	metadata *MetadataStore
	actor    string
}

// NewAuditedStore wraps an existing store with audit logging.
func NewAuditedStore(inner Store, auditLog audit.Recorder, metadata *MetadataStore, actor string) *AuditedStore {
	return &AuditedStore{
		inner:    inner,
		audit:    auditLog,
		metadata: metadata,
		actor:    actor,
	}
}

// Set stores a secret entered at a prompt.
func (s *AuditedStore) Set(service, account, value string) error {
	return s.SetFrom(service, account, value, "prompt")
}

// SetFrom stores a secret and records where the value came from.
func (s *AuditedStore) SetFrom(service, account, value, source string) error {
	key := MetadataKey(service, account)
	if err := s.inner.Set(service, account, value); err != nil {
		return fmt.Errorf("audited store set: %w", err)
	}

	// Audit logging is best-effort; a failure to log should not block the operation.
	s.audit.Log(audit.Entry{
		Action:  audit.ActionSecretWrite,
		Key:     key,
		User:    account,
		Actor:   s.actor,
		Trigger: source,
	})

	return s.touch(key, source)
}

func (s *AuditedStore) touch(key, source string) error {
	if s.metadata == nil {
		return nil
	}
	now := time.Now().UTC()
	meta := s.metadata.Get(key)
	if meta == nil {
		meta = &SecretMetadata{CreatedAt: now}
	}
	meta.UpdatedAt = now
	meta.Source = source
	if err := s.metadata.Set(key, meta); err != nil {
		return fmt.Errorf("saving metadata: %w", err)
	}
	return nil
}

func (s *AuditedStore) Get(service, account string) (string, error) {
	val, err := s.inner.Get(service, account)
	if err != nil {
		return "", fmt.Errorf("audited store get: %w", err)
	}

	s.audit.Log(audit.Entry{
		Action: audit.ActionSecretRead,
		Key:    MetadataKey(service, account),
		User:   account,
		Actor:  s.actor,
	})

	return val, nil
}

func (s *AuditedStore) Delete(service, account string) error {
	key := MetadataKey(service, account)
	if err := s.inner.Delete(service, account); err != nil {
		return fmt.Errorf("audited store delete: %w", err)
	}

	s.audit.Log(audit.Entry{
		Action: audit.ActionSecretDelete,
		Key:    key,
		User:   account,
		Actor:  s.actor,
	})

	if s.metadata == nil {
		return nil
	}
	if err := s.metadata.Delete(key); err != nil {
		return fmt.Errorf("deleting metadata: %w", err)
	}
	return nil
}

// SetFromCommand runs a helper command (for example a password manager
// lookup), stores its stdout as the secret and logs the command that
// produced it. If validate is non-nil the output must pass it. The previous
// value is kept if the command or validation fails.
func (s *AuditedStore) SetFromCommand(service, account, command string, validate func(string) error) error {
	key := MetadataKey(service, account)

	output, err := runSecretCommand(command)
	if err == nil && output != "" && validate != nil {
		if verr := validate(output); verr != nil {
			err = fmt.Errorf("rejected output: %w", verr)
		}
	}
	if err != nil {
		s.audit.Log(audit.Entry{
			Action:  audit.ActionSecretWrite,
			Key:     key,
			User:    account,
			Actor:   s.actor,
			Trigger: "command",
			Command: command,
			Error:   err.Error(),
		})
		return fmt.Errorf("secret command failed: %w", err)
	}
	if output == "" {
		return fmt.Errorf("secret command produced no output")
	}

	if err := s.inner.Set(service, account, output); err != nil {
		return fmt.Errorf("storing secret from command: %w", err)
	}

	s.audit.Log(audit.Entry{
		Action:  audit.ActionSecretWrite,
		Key:     key,
		User:    account,
		Actor:   s.actor,
		Trigger: "command",
		Command: command,
	})

	return s.touch(key, "command")
}

// Metadata returns the metadata store for direct access.
func (s *AuditedStore) Metadata() *MetadataStore {
	return s.metadata
}

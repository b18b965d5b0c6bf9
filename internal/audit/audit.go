// Package audit provides append-only structured logging for secret and
// certificate operations.
//
// Every secret access (read, write, delete) and every certificate request is
// recorded to an audit log at ~/.sshproxy/audit.log as newline-delimited
// JSON. Secret values, one-time codes and tokens are never recorded.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Action describes what happened.
type Action string

const (
	ActionSecretRead   Action = "secret_read"
	ActionSecretWrite  Action = "secret_write"
	ActionSecretDelete Action = "secret_delete"
	ActionCertIssued   Action = "cert_issued"
	ActionCertFailed   Action = "cert_failed"
)

// Entry is a single audit log record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Action    Action    `json:"action"`
	Key       string    `json:"key,omitempty"` // "<service>/<account>"
	User      string    `json:"user,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	Actor     string    `json:"actor,omitempty"`   // "cli"
	Trigger   string    `json:"trigger,omitempty"` // "prompt", "stdin", "command", "issue"
	Command   string    `json:"command,omitempty"` // helper command if applicable
	Path      string    `json:"path,omitempty"`    // private key path for certificate entries
	Expires   string    `json:"expires,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Recorder is anything that accepts audit entries.
type Recorder interface {
	Log(entry Entry) error
}

// Logger writes audit entries to an append-only file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewLogger creates or opens an audit log file for appending.
func NewLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &Logger{file: f, path: path}, nil
}

// Log writes an audit entry.
func (l *Logger) Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string {
	return l.path
}

// Close closes the audit log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// Discard is a Recorder that drops every entry.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Log(Entry) error { return nil }

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `url: https://sshproxy.example.org
scope: long
user: alice
key_path: /tmp/keys/nersc
key_tool: native
timeout: 5s
format:
  cert_label: SSH CERTIFICATE
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "https://sshproxy.example.org" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.Scope != "long" {
		t.Errorf("Scope = %q, want long", cfg.Scope)
	}
	if cfg.User != "alice" {
		t.Errorf("User = %q, want alice", cfg.User)
	}
	if cfg.KeyTool != "native" {
		t.Errorf("KeyTool = %q, want native", cfg.KeyTool)
	}
	if cfg.Timeout.Duration != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.Format.CertLabel != "SSH CERTIFICATE" {
		t.Errorf("CertLabel = %q", cfg.Format.CertLabel)
	}
	// Unset format fields keep their defaults.
	if cfg.Format.KeyLabel != "PRIVATE KEY" {
		t.Errorf("KeyLabel = %q, want PRIVATE KEY", cfg.Format.KeyLabel)
	}
	if cfg.Service != "NERSC" {
		t.Errorf("Service = %q, want NERSC", cfg.Service)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.URL != "https://sshproxy.nersc.gov" {
		t.Errorf("URL = %q, want default", cfg.URL)
	}
	if cfg.Scope != "default" {
		t.Errorf("Scope = %q, want default", cfg.Scope)
	}
	if cfg.KeyPath != "~/.ssh/nersc" {
		t.Errorf("KeyPath = %q", cfg.KeyPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadCommentsOnly(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "# scope: long\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scope != "default" {
		t.Errorf("Scope = %q, want default", cfg.Scope)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "timeout: soon\n")

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("expected invalid duration error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"SSHPROXY_URL":      "https://other.example.org",
		"SSHPROXY_SCOPE":    "long",
		"SSHPROXY_USER":     "bob",
		"SSHPROXY_KEY_PATH": "/tmp/k",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.URL != "https://other.example.org" || cfg.Scope != "long" || cfg.User != "bob" || cfg.KeyPath != "/tmp/k" {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"http loopback", func(c *Config) { c.URL = "http://127.0.0.1:8080" }, true},
		{"http localhost", func(c *Config) { c.URL = "http://localhost:8080" }, true},
		{"http remote", func(c *Config) { c.URL = "http://sshproxy.nersc.gov" }, false},
		{"ftp", func(c *Config) { c.URL = "ftp://sshproxy.nersc.gov" }, false},
		{"no host", func(c *Config) { c.URL = "https://" }, false},
		{"empty scope", func(c *Config) { c.Scope = " " }, false},
		{"empty key path", func(c *Config) { c.KeyPath = "" }, false},
		{"unknown key tool", func(c *Config) { c.KeyTool = "putty" }, false},
		{"zero timeout", func(c *Config) { c.Timeout = Duration{} }, false},
	}

	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		err := cfg.Validate()
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := ExpandHome("~/.ssh/nersc")
	if err != nil {
		t.Fatalf("ExpandHome: %v", err)
	}
	if got != filepath.Join(home, ".ssh", "nersc") {
		t.Errorf("ExpandHome = %q", got)
	}

	got, _ = ExpandHome("/abs/path")
	if got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
}

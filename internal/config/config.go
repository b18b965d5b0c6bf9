// Package config loads sshproxy settings from ~/.sshproxy/config.yaml and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/benaskins/sshproxy/internal/artifact"
	"github.com/benaskins/sshproxy/internal/keytool"
	"github.com/benaskins/sshproxy/internal/sshproxy"
)

// Config holds settings loaded from ~/.sshproxy/config.yaml.
type Config struct {
	URL      string          `yaml:"url"`
	Scope    string          `yaml:"scope"`
	User     string          `yaml:"user"`
	KeyPath  string          `yaml:"key_path"`
	Service  string          `yaml:"service"`
	KeyTool  string          `yaml:"key_tool"`
	Timeout  Duration        `yaml:"timeout"`
	AuditLog string          `yaml:"audit_log"`
	Format   artifact.Format `yaml:"format"`
}

// Duration wraps time.Duration for YAML unmarshaling from strings like "10s", "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Home returns the sshproxy state directory: ~/.sshproxy.
func Home() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sshproxy"), nil
}

// DefaultPath returns the default config file path: ~/.sshproxy/config.yaml.
func DefaultPath() string {
	dir, err := Home()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Default returns the built-in settings.
func Default() *Config {
	cfg := &Config{
		URL:     sshproxy.DefaultURL,
		Scope:   sshproxy.DefaultScope,
		KeyPath: "~/.ssh/nersc",
		Service: "NERSC",
		KeyTool: keytool.NameSSHKeygen,
		Timeout: Duration{sshproxy.DefaultTimeout},
		Format:  artifact.DefaultFormat,
	}
	if dir, err := Home(); err == nil {
		cfg.AuditLog = filepath.Join(dir, "audit.log")
	}
	return cfg
}

// Load reads a YAML config file from path on top of Default. If the file
// does not exist, or is empty or all comments, the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Format = cfg.Format.WithDefaults()
	return cfg, nil
}

// ApplyEnv overrides settings from SSHPROXY_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("SSHPROXY_URL"); v != "" {
		c.URL = v
	}
	if v := getenv("SSHPROXY_SCOPE"); v != "" {
		c.Scope = v
	}
	if v := getenv("SSHPROXY_USER"); v != "" {
		c.User = v
	}
	if v := getenv("SSHPROXY_KEY_PATH"); v != "" {
		c.KeyPath = v
	}
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("url %q is invalid: %w", c.URL, err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		// Plain HTTP would send the password in the clear; allow it only
		// for a local test server.
		if !isLoopback(u.Hostname()) {
			return fmt.Errorf("url %q must use https", c.URL)
		}
	default:
		return fmt.Errorf("url %q must use https", c.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", c.URL)
	}

	if strings.TrimSpace(c.Scope) == "" {
		return fmt.Errorf("scope is required")
	}
	if c.KeyPath == "" {
		return fmt.Errorf("key_path is required")
	}
	if c.Service == "" {
		return fmt.Errorf("service is required")
	}
	if _, err := keytool.New(c.KeyTool); err != nil {
		return err
	}
	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/benaskins/sshproxy/internal/audit"
	"github.com/benaskins/sshproxy/internal/config"
	"github.com/benaskins/sshproxy/internal/credential"
	"github.com/benaskins/sshproxy/internal/keychain"
	"github.com/benaskins/sshproxy/internal/securefile"
)

// loadConfig layers the config file, SSHPROXY_* variables and flags, in
// that order, and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	path, err := config.ExpandHome(path)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.URL = urlFlag
	}
	if flags.Changed("scope") {
		cfg.Scope = scopeFlag
	}
	if flags.Changed("output") {
		cfg.KeyPath = outputFlag
	}
	if flags.Changed("key-tool") {
		cfg.KeyTool = keyToolFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolveUser picks the account name once per invocation: the argument,
// then the configured user (which already carries $SSHPROXY_USER), then
// $USER, then the OS account.
func resolveUser(args []string, configured string, getenv func(string) string, current func() (*user.User, error)) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if configured != "" {
		return configured, nil
	}
	if u := getenv("USER"); u != "" {
		return u, nil
	}
	u, err := current()
	if err != nil {
		return "", fmt.Errorf("cannot determine username; pass it as an argument: %w", err)
	}
	return u.Username, nil
}

func userFor(args []string, cfg *config.Config) (string, error) {
	return resolveUser(args, cfg.User, os.Getenv, user.Current)
}

func keyPathFor(cfg *config.Config) (string, error) {
	return config.ExpandHome(cfg.KeyPath)
}

func namesFor(cfg *config.Config) credential.Names {
	return credential.NamesFor(cfg.Service)
}

// session bundles the secret store with the audit log it writes to.
type session struct {
	store    *keychain.AuditedStore
	system   *keychain.SystemStore
	recorder audit.Recorder
	close    func()
}

// openSession wraps the platform keychain with audit logging and secret
// metadata kept under ~/.sshproxy.
func openSession(cfg *config.Config) (*session, error) {
	s := &session{
		system:   keychain.NewSystemStore(),
		recorder: audit.Discard,
		close:    func() {},
	}

	if cfg.AuditLog != "" {
		path, err := config.ExpandHome(cfg.AuditLog)
		if err != nil {
			return nil, err
		}
		if err := securefile.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
		logger, err := audit.NewLogger(path)
		if err != nil {
			return nil, err
		}
		s.recorder = logger
		s.close = func() { logger.Close() }
	}

	var metadata *keychain.MetadataStore
	if home, err := config.Home(); err == nil {
		if err := securefile.EnsureDir(home); err != nil {
			s.close()
			return nil, err
		}
		metadata, err = keychain.NewMetadataStore(filepath.Join(home, "secret-metadata.json"))
		if err != nil {
			s.close()
			return nil, err
		}
	}

	s.store = keychain.NewAuditedStore(s.system, s.recorder, metadata, "cli")
	return s, nil
}

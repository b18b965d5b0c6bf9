package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/benaskins/sshproxy/internal/artifact"
	"github.com/benaskins/sshproxy/internal/keychain"
	"github.com/benaskins/sshproxy/internal/keytool"
	"github.com/benaskins/sshproxy/internal/securefile"
	"github.com/benaskins/sshproxy/internal/sshproxy"
	"github.com/benaskins/sshproxy/internal/totp"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "sshproxy [user]",
	Short: "Fetch a short-lived NERSC SSH certificate",
	Long: `Fetch a short-lived SSH key and certificate from the NERSC sshproxy service.

The password and OTP secret are read from the system keychain (macOS
Keychain or the Linux user keyring). Store them once with
--update-password and --update-secret.`,
	Args:              cobra.MaximumNArgs(1),
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	RunE:              runIssue,
}

var (
	configPath string
	verbose    bool

	// Overrides for config file and environment settings.
	urlFlag     string
	scopeFlag   string
	outputFlag  string
	keyToolFlag string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.sshproxy/config.yaml)")
	pf.StringVar(&urlFlag, "url", "", "sshproxy service URL")
	pf.StringVar(&scopeFlag, "scope", "", "certificate scope")
	pf.StringVarP(&outputFlag, "output", "o", "", "private key path (default ~/.ssh/nersc)")
	pf.StringVar(&keyToolFlag, "key-tool", "", "key tool: ssh-keygen or native")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log each step to stderr")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status. The most specific kind
// wins, so a missing secret reported through the store is still NotFound.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, keychain.ErrNotFound):
		return 2
	case errors.Is(err, keychain.ErrUnavailable):
		return 3
	case errors.Is(err, totp.ErrInvalidSeed):
		return 4
	case errors.Is(err, sshproxy.ErrAuthentication):
		return 6
	case errors.Is(err, sshproxy.ErrNetwork):
		return 5
	case errors.Is(err, artifact.ErrMalformedResponse):
		return 7
	case errors.Is(err, securefile.ErrFilesystem):
		return 8
	case errors.Is(err, keytool.ErrKeyTool):
		return 9
	default:
		return 1
	}
}

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/benaskins/sshproxy/internal/config"
	"github.com/benaskins/sshproxy/internal/totp"
)

var (
	updatePassword bool
	updateSecret   bool
	fromCommand    string
)

func init() {
	f := rootCmd.Flags()
	f.BoolVar(&updatePassword, "update-password", false, "prompt for the NERSC password and store it")
	f.BoolVar(&updateSecret, "update-secret", false, "prompt for the base32 OTP secret and store it")
	f.StringVar(&fromCommand, "from-command", "", "with one --update flag, store the output of this shell command instead of prompting")
}

// stdin is shared so piped input can supply the password and the secret on
// consecutive lines.
var stdin = bufio.NewReader(os.Stdin)

func runUpdate(sess *session, cfg *config.Config, user string) error {
	names := namesFor(cfg)

	if fromCommand != "" {
		if updatePassword == updateSecret {
			return errors.New("--from-command needs exactly one of --update-password or --update-secret")
		}
		service, what := names.PasswordService, "Password"
		var validate func(string) error
		if updateSecret {
			service, what, validate = names.SeedService, "OTP secret", totp.Validate
		}
		if err := sess.store.SetFromCommand(service, user, fromCommand, validate); err != nil {
			return err
		}
		fmt.Println(successStyle.Render(what+" stored"), "for", user)
		return nil
	}

	if updatePassword {
		password, source, err := promptSecret("NERSC password for " + user)
		if err != nil {
			return err
		}
		if err := sess.store.SetFrom(names.PasswordService, user, password, source); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Password stored"), "for", user)
	}

	if updateSecret {
		seed, source, err := promptSecret("OTP secret (base32) for " + user)
		if err != nil {
			return err
		}
		if err := totp.Validate(seed); err != nil {
			return err
		}
		if err := sess.store.SetFrom(names.SeedService, user, seed, source); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("OTP secret stored"), "for", user)
	}
	return nil
}

// Where a secret came from, as recorded in the audit log and metadata.
const (
	sourcePrompt = "prompt"
	sourceStdin  = "stdin"
)

// promptSecret reads a value without echo from a terminal, or one line from
// piped stdin. It also reports which of the two it used.
func promptSecret(label string) (value, source string, err error) {
	return readSecret(label, int(os.Stdin.Fd()), stdin, os.Stderr)
}

func readSecret(label string, fd int, r *bufio.Reader, prompt io.Writer) (string, string, error) {
	if term.IsTerminal(fd) {
		fmt.Fprintf(prompt, "%s: ", label)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", "", fmt.Errorf("reading %s: %w", label, err)
		}
		v, err := nonEmpty(string(b), label)
		return v, sourcePrompt, err
	}
	line, err := readLine(r)
	if err != nil {
		return "", "", fmt.Errorf("reading %s from stdin: %w", label, err)
	}
	v, err := nonEmpty(line, label)
	return v, sourceStdin, err
}

// readLine returns the next line without its terminator. A final line with
// no newline is accepted.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func nonEmpty(value, label string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("empty %s", label)
	}
	return value, nil
}

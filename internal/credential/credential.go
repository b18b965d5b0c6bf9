// Package credential loads the long-term secrets for a user and turns them
// into the Basic-Auth password the sshproxy service expects.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/benaskins/sshproxy/internal/keychain"
	"github.com/benaskins/sshproxy/internal/totp"
)

// SeedSuffix is appended to the password service name to form the service
// name under which the TOTP seed is stored.
const SeedSuffix = "_SECRET"

// Names identifies where a user's two secrets live in the store.
type Names struct {
	PasswordService string
	SeedService     string
}

// NamesFor derives the two store service names from a base service name.
func NamesFor(service string) Names {
	return Names{
		PasswordService: service,
		SeedService:     service + SeedSuffix,
	}
}

// MissingSecretError reports which secret is absent and how to store it.
type MissingSecretError struct {
	Secret string // "password" or "OTP secret"
	Flag   string // CLI flag that stores it
	User   string
	err    error
}

func (e *MissingSecretError) Error() string {
	return fmt.Sprintf("no %s stored for %s; run with %s first", e.Secret, e.User, e.Flag)
}

func (e *MissingSecretError) Unwrap() error {
	return e.err
}

// Credentials holds one user's secrets for the duration of one invocation.
type Credentials struct {
	User     string
	password string
	seed     string
}

// Load fetches the password and TOTP seed for user. Both must exist.
func Load(store keychain.Store, names Names, user string) (*Credentials, error) {
	password, err := store.Get(names.PasswordService, user)
	if err != nil {
		return nil, wrapMissing(err, "password", "--update-password", user)
	}
	seed, err := store.Get(names.SeedService, user)
	if err != nil {
		return nil, wrapMissing(err, "OTP secret", "--update-secret", user)
	}
	return &Credentials{User: user, password: password, seed: seed}, nil
}

func wrapMissing(err error, secret, flag, user string) error {
	if errors.Is(err, keychain.ErrNotFound) {
		return &MissingSecretError{Secret: secret, Flag: flag, User: user, err: err}
	}
	return fmt.Errorf("reading %s for %s: %w", secret, user, err)
}

// Code returns the one-time code for now.
func (c *Credentials) Code(now time.Time) (string, error) {
	return totp.Generate(c.seed, now)
}

// Assemble returns the AuthToken for an already generated code.
func (c *Credentials) Assemble(code string) string {
	return Assemble(c.password, code)
}

// Token returns the AuthToken for now: the password immediately followed by
// a freshly generated one-time code.
func (c *Credentials) Token(now time.Time) (string, error) {
	code, err := c.Code(now)
	if err != nil {
		return "", err
	}
	return Assemble(c.password, code), nil
}

// Assemble concatenates password and code with no separator. The sshproxy
// service splits the Basic-Auth password itself, so this framing must match
// exactly.
func Assemble(password, code string) string {
	return password + code
}

// Package keytool derives public keys and reads certificate validity.
//
// The default implementation shells out to ssh-keygen, exactly as a user
// would. Native does the same work in-process with x/crypto/ssh for hosts
// without OpenSSH installed.
package keytool

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrKeyTool wraps failures of the key tool itself: a missing binary, a
// nonzero exit, or output that cannot be parsed.
var ErrKeyTool = errors.New("key tool failed")

// KeyTool is the narrow interface the issuer needs from ssh-keygen.
type KeyTool interface {
	// DerivePublicKey returns the authorized_keys line for a private key file.
	DerivePublicKey(ctx context.Context, privateKeyPath string) ([]byte, error)

	// InspectValidity reports the validity window of a certificate file.
	InspectValidity(ctx context.Context, certPath string) (Validity, error)
}

// Validity is a certificate's validity window. A zero From means "always",
// a zero To means "forever".
type Validity struct {
	From time.Time
	To   time.Time
}

// Forever reports whether the certificate has no expiry.
func (v Validity) Forever() bool {
	return v.To.IsZero()
}

// Remaining returns the time left at now, or zero once expired.
func (v Validity) Remaining(now time.Time) time.Duration {
	if v.Forever() {
		return time.Duration(1<<63 - 1)
	}
	if d := v.To.Sub(now); d > 0 {
		return d
	}
	return 0
}

const displayLayout = "2006-01-02T15:04:05"

// String renders the window the way ssh-keygen -L does, lower-cased.
func (v Validity) String() string {
	from := v.From.Local().Format(displayLayout)
	to := v.To.Local().Format(displayLayout)
	switch {
	case v.From.IsZero() && v.To.IsZero():
		return "valid forever"
	case v.From.IsZero():
		return "valid before " + to
	case v.To.IsZero():
		return "valid after " + from
	default:
		return fmt.Sprintf("valid from %s to %s", from, to)
	}
}

// Names of the supported implementations.
const (
	NameSSHKeygen = "ssh-keygen"
	NameNative    = "native"
)

// New returns the implementation registered under name.
func New(name string) (KeyTool, error) {
	switch name {
	case "", NameSSHKeygen:
		return &SSHKeygen{}, nil
	case NameNative:
		return Native{}, nil
	default:
		return nil, fmt.Errorf("unknown key tool %q (want %q or %q)", name, NameSSHKeygen, NameNative)
	}
}

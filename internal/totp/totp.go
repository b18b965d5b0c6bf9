// Package totp generates RFC 6238 time-based one-time passcodes.
//
// Codes are a pure function of the seed and the time passed in. Nothing is
// cached; callers compute a fresh code for every request.
package totp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// ErrInvalidSeed is returned when a seed is empty or not valid base32.
var ErrInvalidSeed = errors.New("invalid TOTP seed")

// Options controls code generation.
type Options struct {
	Period    uint   // seconds per time step
	Digits    int    // code width
	Algorithm string // "SHA1", "SHA256" or "SHA512"
}

// DefaultOptions are the parameters used by the NERSC MFA service:
// 30 second steps, 6 digits, HMAC-SHA1.
var DefaultOptions = Options{
	Period:    30,
	Digits:    6,
	Algorithm: "SHA1",
}

func algorithm(name string) (otp.Algorithm, error) {
	switch strings.ToUpper(name) {
	case "", "SHA1":
		return otp.AlgorithmSHA1, nil
	case "SHA256":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	default:
		return 0, fmt.Errorf("unsupported TOTP algorithm %q (want SHA1, SHA256, or SHA512)", name)
	}
}

// normalize applies the leniency the standard allows: case-insensitive
// alphabet, surrounding whitespace, omitted '=' padding. A seed that
// carries any padding is left as is and must be padded correctly.
func normalize(seed string) string {
	seed = strings.ToUpper(strings.TrimSpace(seed))
	if strings.Contains(seed, "=") {
		return seed
	}
	if n := len(seed) % 8; n != 0 {
		seed += strings.Repeat("=", 8-n)
	}
	return seed
}

// Validate reports whether seed decodes as base32. Illegal characters and
// impossible lengths are rejected; nothing is truncated or zero-filled.
func Validate(seed string) error {
	if strings.TrimSpace(seed) == "" {
		return fmt.Errorf("%w: seed is empty", ErrInvalidSeed)
	}
	normalized := normalize(seed)
	if len(normalized)%8 != 0 {
		return fmt.Errorf("%w: incorrect padding", ErrInvalidSeed)
	}
	decoded, err := base32.StdEncoding.DecodeString(normalized)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if len(decoded) == 0 {
		return fmt.Errorf("%w: seed decodes to zero bytes", ErrInvalidSeed)
	}
	return nil
}

// Generate returns the code for seed at t using DefaultOptions.
func Generate(seed string, t time.Time) (string, error) {
	return GenerateWith(seed, t, DefaultOptions)
}

// GenerateWith returns the code for seed at t.
func GenerateWith(seed string, t time.Time, opts Options) (string, error) {
	if err := Validate(seed); err != nil {
		return "", err
	}

	alg, err := algorithm(opts.Algorithm)
	if err != nil {
		return "", err
	}
	period := opts.Period
	if period == 0 {
		period = DefaultOptions.Period
	}
	digits := opts.Digits
	if digits == 0 {
		digits = DefaultOptions.Digits
	}

	code, err := totp.GenerateCodeCustom(normalize(seed), t.UTC(), totp.ValidateOpts{
		Period:    period,
		Digits:    otp.Digits(digits),
		Algorithm: alg,
	})
	if err != nil {
		if errors.Is(err, otp.ErrValidateSecretInvalidBase32) {
			return "", fmt.Errorf("%w: %w", ErrInvalidSeed, err)
		}
		return "", fmt.Errorf("generating TOTP code: %w", err)
	}
	return code, nil
}

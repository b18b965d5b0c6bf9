package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// ErrNotSSHCertificate is returned when certificate bytes parse as an
// authorized key but not as an OpenSSH certificate.
var ErrNotSSHCertificate = errors.New("not an OpenSSH certificate")

// DerivePublicKey returns the authorized_keys line for an unencrypted
// private key, the same text "ssh-keygen -y" prints.
func DerivePublicKey(privateKey []byte) ([]byte, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return ssh.MarshalAuthorizedKey(signer.PublicKey()), nil
}

// ParseCertificate parses an OpenSSH certificate line.
func ParseCertificate(data []byte) (*ssh.Certificate, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}
	cert, ok := pub.(*ssh.Certificate)
	if !ok {
		return nil, fmt.Errorf("%w: key type %s", ErrNotSSHCertificate, pub.Type())
	}
	return cert, nil
}

// CertTime converts an OpenSSH certificate timestamp. The zero Time stands
// for "forever" (ssh.CertTimeInfinity).
func CertTime(v uint64) time.Time {
	if v == ssh.CertTimeInfinity || v > 1<<62 {
		return time.Time{}
	}
	return time.Unix(int64(v), 0).UTC()
}

// Summary describes a parsed response for "sshproxy check-response".
type Summary struct {
	KeyType     string
	CertType    string
	KeyID       string
	Principals  []string
	Serial      uint64
	ValidAfter  time.Time
	ValidBefore time.Time // zero means forever
	MatchesKey  bool
}

// Inspect parses both halves of a Pair with x/crypto/ssh. It fails for PEM
// certificates, which only pass the structural Split check.
func Inspect(p *Pair) (*Summary, error) {
	signer, err := ssh.ParsePrivateKey(p.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	cert, err := ParseCertificate(p.Certificate)
	if err != nil {
		return nil, err
	}

	return &Summary{
		KeyType:     signer.PublicKey().Type(),
		CertType:    cert.Type(),
		KeyID:       cert.KeyId,
		Principals:  cert.ValidPrincipals,
		Serial:      cert.Serial,
		ValidAfter:  CertTime(cert.ValidAfter),
		ValidBefore: CertTime(cert.ValidBefore),
		MatchesKey:  bytes.Equal(cert.Key.Marshal(), signer.PublicKey().Marshal()),
	}, nil
}

// String renders the summary as aligned "Field: value" lines.
func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Key type:    %s\n", s.KeyType)
	fmt.Fprintf(&b, "Certificate: %s\n", s.CertType)
	fmt.Fprintf(&b, "Key ID:      %s\n", s.KeyID)
	fmt.Fprintf(&b, "Serial:      %d\n", s.Serial)
	fmt.Fprintf(&b, "Principals:  %s\n", strings.Join(s.Principals, ", "))
	before := "forever"
	if !s.ValidBefore.IsZero() {
		before = s.ValidBefore.Format(time.RFC3339)
	}
	fmt.Fprintf(&b, "Valid:       from %s to %s\n", s.ValidAfter.Format(time.RFC3339), before)
	fmt.Fprintf(&b, "Matches key: %t\n", s.MatchesKey)
	return b.String()
}

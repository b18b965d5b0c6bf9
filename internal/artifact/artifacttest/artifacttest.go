// Package artifacttest builds signed key/certificate responses for tests.
package artifacttest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// Response is a freshly minted user key and its CA-signed certificate.
type Response struct {
	PrivateKey  []byte // OpenSSH PEM
	Certificate []byte // authorized_keys line, newline terminated
	PublicKey   []byte // authorized_keys line for the user key
	ValidAfter  time.Time
	ValidBefore time.Time
}

// Body returns the combined payload as the signing service sends it.
func (r *Response) Body() []byte {
	out := append([]byte{}, r.PrivateKey...)
	return append(out, r.Certificate...)
}

// NewResponse generates an ed25519 key and signs a user certificate for
// principal valid from after until before.
func NewResponse(t testing.TB, principal string, after, before time.Time) *Response {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating user key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("marshaling user key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("user signer: %v", err)
	}

	_, caPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating CA key: %v", err)
	}
	ca, err := ssh.NewSignerFromKey(caPriv)
	if err != nil {
		t.Fatalf("CA signer: %v", err)
	}

	cert := &ssh.Certificate{
		Key:             signer.PublicKey(),
		Serial:          42,
		CertType:        ssh.UserCert,
		KeyId:           principal,
		ValidPrincipals: []string{principal},
		ValidAfter:      uint64(after.Unix()),
		ValidBefore:     uint64(before.Unix()),
	}
	if err := cert.SignCert(rand.Reader, ca); err != nil {
		t.Fatalf("signing certificate: %v", err)
	}

	return &Response{
		PrivateKey:  pem.EncodeToMemory(block),
		Certificate: ssh.MarshalAuthorizedKey(cert),
		PublicKey:   ssh.MarshalAuthorizedKey(signer.PublicKey()),
		ValidAfter:  after.UTC().Truncate(time.Second),
		ValidBefore: before.UTC().Truncate(time.Second),
	}
}

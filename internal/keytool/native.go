package keytool

import (
	"context"
	"fmt"
	"os"

	"github.com/benaskins/sshproxy/internal/artifact"
)

// Native implements KeyTool with golang.org/x/crypto/ssh.
type Native struct{}

func (Native) DerivePublicKey(_ context.Context, privateKeyPath string) ([]byte, error) {
	data, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyTool, err)
	}
	pub, err := artifact.DerivePublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyTool, err)
	}
	return pub, nil
}

func (Native) InspectValidity(_ context.Context, certPath string) (Validity, error) {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return Validity{}, fmt.Errorf("%w: %w", ErrKeyTool, err)
	}
	cert, err := artifact.ParseCertificate(data)
	if err != nil {
		return Validity{}, fmt.Errorf("%w: %w", ErrKeyTool, err)
	}
	v := Validity{To: artifact.CertTime(cert.ValidBefore)}
	if cert.ValidAfter != 0 {
		v.From = artifact.CertTime(cert.ValidAfter)
	}
	return v, nil
}

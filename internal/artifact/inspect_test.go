package artifact

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benaskins/sshproxy/internal/artifact/artifacttest"
)

func TestInspect(t *testing.T) {
	after := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	before := after.Add(24 * time.Hour)
	resp := artifacttest.NewResponse(t, "alice", after, before)

	pair, err := Split(resp.Body(), DefaultFormat)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	s, err := Inspect(pair)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if s.KeyType != "ssh-ed25519" {
		t.Errorf("expected ssh-ed25519, got %q", s.KeyType)
	}
	if s.CertType != "ssh-ed25519-cert-v01@openssh.com" {
		t.Errorf("unexpected cert type %q", s.CertType)
	}
	if !s.MatchesKey {
		t.Error("expected certificate to match key")
	}
	if !s.ValidAfter.Equal(after) || !s.ValidBefore.Equal(before) {
		t.Errorf("validity %v..%v, want %v..%v", s.ValidAfter, s.ValidBefore, after, before)
	}
	if len(s.Principals) != 1 || s.Principals[0] != "alice" {
		t.Errorf("unexpected principals %v", s.Principals)
	}
	if !strings.Contains(s.String(), "Matches key: true") {
		t.Errorf("unexpected summary:\n%s", s)
	}
}

func TestInspectMismatchedKey(t *testing.T) {
	now := time.Now()
	a := artifacttest.NewResponse(t, "alice", now, now.Add(time.Hour))
	b := artifacttest.NewResponse(t, "alice", now, now.Add(time.Hour))

	s, err := Inspect(&Pair{PrivateKey: a.PrivateKey, Certificate: b.Certificate})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if s.MatchesKey {
		t.Error("expected mismatch")
	}
}

func TestDerivePublicKey(t *testing.T) {
	resp := artifacttest.NewResponse(t, "alice", time.Now(), time.Now().Add(time.Hour))

	pub, err := DerivePublicKey(resp.PrivateKey)
	if err != nil {
		t.Fatalf("DerivePublicKey: %v", err)
	}
	if !bytes.Equal(pub, resp.PublicKey) {
		t.Errorf("public key = %q, want %q", pub, resp.PublicKey)
	}
}

func TestParseCertificateRejectsPlainKey(t *testing.T) {
	resp := artifacttest.NewResponse(t, "alice", time.Now(), time.Now().Add(time.Hour))

	_, err := ParseCertificate(resp.PublicKey)
	if !errors.Is(err, ErrNotSSHCertificate) {
		t.Fatalf("expected ErrNotSSHCertificate, got %v", err)
	}
}

func TestCertTimeForever(t *testing.T) {
	if !CertTime(^uint64(0)).IsZero() {
		t.Error("expected zero time for CertTimeInfinity")
	}
	if got := CertTime(59); !got.Equal(time.Unix(59, 0)) {
		t.Errorf("CertTime(59) = %v", got)
	}
}

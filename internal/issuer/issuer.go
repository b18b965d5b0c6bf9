// Package issuer runs one certificate request from stored secrets to files
// on disk.
//
// A run moves through a fixed sequence of stages and stops at the first
// failure. Nothing is retried and nothing but the two stored secrets
// survives between runs.
package issuer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/benaskins/sshproxy/internal/artifact"
	"github.com/benaskins/sshproxy/internal/audit"
	"github.com/benaskins/sshproxy/internal/credential"
	"github.com/benaskins/sshproxy/internal/keychain"
	"github.com/benaskins/sshproxy/internal/keytool"
	"github.com/benaskins/sshproxy/internal/securefile"
)

// Stage is a point in the issuing sequence.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageSecretsLoaded    Stage = "secrets_loaded"
	StageCodeGenerated    Stage = "code_generated"
	StageTokenAssembled   Stage = "token_assembled"
	StageResponseReceived Stage = "response_received"
	StageArtifactsSplit   Stage = "artifacts_split"
	StageFilesWritten     Stage = "files_written"
	StageDone             Stage = "done"
)

// StageError records the stage a run failed in. It unwraps to the cause so
// callers can still match sentinel errors.
type StageError struct {
	Stage Stage // last stage reached before the failure
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("after %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Signer requests a key pair from the signing service.
type Signer interface {
	CreatePair(ctx context.Context, scope, user, token string) ([]byte, error)
}

// Paths are the three artifact locations for one private key path.
type Paths struct {
	PrivateKey  string
	Certificate string
	PublicKey   string
}

// PathsFor derives <key>-cert.pub and <key>.pub from the private key path.
func PathsFor(keyPath string) Paths {
	return Paths{
		PrivateKey:  keyPath,
		Certificate: keyPath + "-cert.pub",
		PublicKey:   keyPath + ".pub",
	}
}

// Result describes a successful run.
type Result struct {
	Paths    Paths
	Validity keytool.Validity
	// ValidityErr is set when the certificate was written but its validity
	// could not be read. It does not fail the run.
	ValidityErr error
}

// Issuer holds the collaborators for a run. All fields except Audit, Now
// and Logger are required.
type Issuer struct {
	Store   keychain.Store
	Names   credential.Names
	Signer  Signer
	KeyTool keytool.KeyTool
	Format  artifact.Format
	Scope   string
	Audit   audit.Recorder
	Now     func() time.Time
	Logger  *slog.Logger
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Run requests a certificate for user and writes the artifacts next to
// keyPath.
func (i *Issuer) Run(ctx context.Context, user, keyPath string) (*Result, error) {
	logger := i.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("user", user, "scope", i.Scope)
	recorder := i.Audit
	if recorder == nil {
		recorder = audit.Discard
	}

	stage := StageIdle
	advance := func(next Stage) {
		stage = next
		logger.Debug("stage reached", "stage", next)
	}
	fail := func(err error) (*Result, error) {
		logger.Debug("run failed", "stage", stage, "error", err)
		recorder.Log(audit.Entry{
			Action:  audit.ActionCertFailed,
			User:    user,
			Scope:   i.Scope,
			Actor:   "cli",
			Trigger: "issue",
			Path:    keyPath,
			Error:   err.Error(),
		})
		return nil, &StageError{Stage: stage, Err: err}
	}

	creds, err := credential.Load(i.Store, i.Names, user)
	if err != nil {
		return fail(err)
	}
	advance(StageSecretsLoaded)

	code, err := creds.Code(i.now())
	if err != nil {
		return fail(err)
	}
	advance(StageCodeGenerated)

	token := creds.Assemble(code)
	advance(StageTokenAssembled)

	body, err := i.Signer.CreatePair(ctx, i.Scope, user, token)
	if err != nil {
		return fail(err)
	}
	advance(StageResponseReceived)

	pair, err := artifact.Split(body, i.Format)
	if err != nil {
		return fail(err)
	}
	advance(StageArtifactsSplit)

	paths := PathsFor(keyPath)
	if err := i.write(ctx, paths, pair); err != nil {
		return fail(err)
	}
	advance(StageFilesWritten)

	result := &Result{Paths: paths}
	result.Validity, result.ValidityErr = i.KeyTool.InspectValidity(ctx, paths.Certificate)
	if result.ValidityErr != nil {
		logger.Warn("could not read certificate validity", "path", paths.Certificate, "error", result.ValidityErr)
	}

	entry := audit.Entry{
		Action:  audit.ActionCertIssued,
		User:    user,
		Scope:   i.Scope,
		Actor:   "cli",
		Trigger: "issue",
		Path:    keyPath,
	}
	if result.ValidityErr == nil && !result.Validity.Forever() {
		entry.Expires = result.Validity.To.UTC().Format(time.RFC3339)
	}
	recorder.Log(entry)

	advance(StageDone)
	return result, nil
}

// write materialises the pair and the derived public key. A failure part
// way leaves earlier files in place, still owner-only.
func (i *Issuer) write(ctx context.Context, paths Paths, pair *artifact.Pair) error {
	if err := securefile.EnsureDir(filepath.Dir(paths.PrivateKey)); err != nil {
		return err
	}
	if err := securefile.WriteSecret(paths.PrivateKey, pair.PrivateKey, securefile.PrivateMode); err != nil {
		return err
	}
	if err := securefile.WriteSecret(paths.Certificate, pair.Certificate, securefile.PrivateMode); err != nil {
		return err
	}

	pub, err := i.KeyTool.DerivePublicKey(ctx, paths.PrivateKey)
	if err != nil {
		return err
	}
	return securefile.WriteFile(paths.PublicKey, pub, securefile.PublicMode)
}

package keytool

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/benaskins/sshproxy/internal/logbuf"
)

// stderrLines bounds how much ssh-keygen chatter ends up in an error.
const stderrLines = 5

// SSHKeygen runs the OpenSSH ssh-keygen binary.
type SSHKeygen struct {
	// Path to the binary. Empty means "ssh-keygen" from $PATH.
	Path string
}

func (k *SSHKeygen) binary() string {
	if k.Path == "" {
		return "ssh-keygen"
	}
	return k.Path
}

func (k *SSHKeygen) run(ctx context.Context, args ...string) ([]byte, error) {
	stderr := logbuf.New(stderrLines)
	cmd := exec.CommandContext(ctx, k.binary(), args...)
	cmd.Stderr = stderr
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s %s: exit code %d: %s", ErrKeyTool, k.binary(), strings.Join(args, " "),
				exitErr.ExitCode(), stderr)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrKeyTool, k.binary(), err)
	}
	return output, nil
}

// DerivePublicKey runs "ssh-keygen -y -f <path>".
func (k *SSHKeygen) DerivePublicKey(ctx context.Context, privateKeyPath string) ([]byte, error) {
	out, err := k.run(ctx, "-y", "-f", privateKeyPath)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, fmt.Errorf("%w: ssh-keygen -y printed nothing", ErrKeyTool)
	}
	return out, nil
}

// InspectValidity runs "ssh-keygen -L -f <path>" and parses its Valid: line.
func (k *SSHKeygen) InspectValidity(ctx context.Context, certPath string) (Validity, error) {
	out, err := k.run(ctx, "-L", "-f", certPath)
	if err != nil {
		return Validity{}, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "Valid:"); ok {
			return parseValidity(strings.TrimSpace(rest))
		}
	}
	return Validity{}, fmt.Errorf("%w: no Valid: line in ssh-keygen -L output", ErrKeyTool)
}

// parseValidity parses the text after "Valid:" in ssh-keygen -L output:
// "forever", "from X to Y", "after X" or "before Y". Times are local.
func parseValidity(s string) (Validity, error) {
	parse := func(v string) (time.Time, error) {
		t, err := time.ParseInLocation(displayLayout, v, time.Local)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: parsing validity time %q: %w", ErrKeyTool, v, err)
		}
		return t, nil
	}

	fields := strings.Fields(s)
	switch {
	case len(fields) == 1 && fields[0] == "forever":
		return Validity{}, nil
	case len(fields) == 4 && fields[0] == "from" && fields[2] == "to":
		from, err := parse(fields[1])
		if err != nil {
			return Validity{}, err
		}
		to, err := parse(fields[3])
		if err != nil {
			return Validity{}, err
		}
		return Validity{From: from, To: to}, nil
	case len(fields) == 2 && fields[0] == "after":
		from, err := parse(fields[1])
		if err != nil {
			return Validity{}, err
		}
		return Validity{From: from}, nil
	case len(fields) == 2 && fields[0] == "before":
		to, err := parse(fields[1])
		if err != nil {
			return Validity{}, err
		}
		return Validity{To: to}, nil
	}
	return Validity{}, fmt.Errorf("%w: unrecognised validity %q", ErrKeyTool, s)
}

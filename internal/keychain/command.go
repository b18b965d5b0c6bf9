package keychain

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/benaskins/sshproxy/internal/logbuf"
)

// runSecretCommand executes a helper command and captures its stdout.
// The command must print the secret value to stdout (and only the value).
func runSecretCommand(command string) (string, error) {
	stderr := logbuf.New(3)
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Stderr = stderr
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), stderr)
		}
		return "", err
	}
	return strings.TrimRight(string(output), "\r\n"), nil
}

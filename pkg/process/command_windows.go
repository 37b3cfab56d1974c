//go:build windows

package process

import (
	"os/exec"

	"github.com/core-tools/hsu-oneshot/pkg/errors"
)

func setupProcessAttributes(cmd *exec.Cmd) {
}

// applyCredential rejects run-as users on Windows: credential spawning
// requires a logon token, which this engine does not manage
func applyCredential(cmd *exec.Cmd, runAsUser string) error {
	if runAsUser == "" {
		return nil
	}
	return errors.NewPermissionError("run-as user is not supported on Windows", nil).
		WithContext("user", runAsUser)
}

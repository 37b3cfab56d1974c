//go:build !windows

package process

import (
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/core-tools/hsu-oneshot/pkg/errors"
)

// setupProcessAttributes configures Unix-specific process attributes
func setupProcessAttributes(cmd *exec.Cmd) {
	// New process group, so external termination of -pid reaches the
	// entire process tree
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// applyCredential sets the spawn credential when runAsUser names a user
// other than the current one
func applyCredential(cmd *exec.Cmd, runAsUser string) error {
	if runAsUser == "" {
		return nil
	}

	current, err := user.Current()
	if err == nil && (current.Username == runAsUser || current.Uid == runAsUser) {
		return nil
	}

	target, err := user.Lookup(runAsUser)
	if err != nil {
		return errors.NewPermissionError("failed to look up run-as user", err).
			WithContext("user", runAsUser)
	}

	uid, err := strconv.ParseUint(target.Uid, 10, 32)
	if err != nil {
		return errors.NewInternalError("invalid uid for run-as user", err).
			WithContext("user", runAsUser)
	}
	gid, err := strconv.ParseUint(target.Gid, 10, 32)
	if err != nil {
		return errors.NewInternalError("invalid gid for run-as user", err).
			WithContext("user", runAsUser)
	}

	cmd.SysProcAttr.Credential = &syscall.Credential{
		Uid: uint32(uid),
		Gid: uint32(gid),
	}
	return nil
}

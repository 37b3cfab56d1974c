// Package process is the execution boundary: it spawns unit commands via
// the host's process facility, applies the configured identity, and
// captures combined output.
package process

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-oneshot/pkg/errors"
	"github.com/core-tools/hsu-oneshot/pkg/logging"
)

// ExecSpec describes a single command invocation
type ExecSpec struct {
	Command          string
	Args             []string
	WorkingDirectory string
	Environment      []string
	RunAsUser        string
}

// CommandRunner runs a command to completion and returns its combined
// stdout+stderr output. A non-zero exit returns the output collected so
// far together with an exit error.
type CommandRunner interface {
	Run(ctx context.Context, spec ExecSpec) ([]byte, error)
}

type stdCommandRunner struct {
	unitRoot string
	logger   logging.Logger
}

// NewStdCommandRunner creates a runner that resolves relative command
// paths against unitRoot.
func NewStdCommandRunner(unitRoot string, logger logging.Logger) CommandRunner {
	return &stdCommandRunner{
		unitRoot: unitRoot,
		logger:   logger,
	}
}

func (r *stdCommandRunner) Run(ctx context.Context, spec ExecSpec) ([]byte, error) {
	if ctx == nil {
		return nil, errors.NewValidationError("context cannot be nil", nil)
	}
	if spec.Command == "" {
		return nil, errors.NewValidationError("command cannot be empty", nil)
	}

	commandPath, err := r.resolveCommandPath(spec.Command)
	if err != nil {
		return nil, err
	}

	workDir := spec.WorkingDirectory
	if workDir == "" && strings.ContainsRune(commandPath, os.PathSeparator) {
		workDir = filepath.Dir(commandPath)
	}

	env := os.Environ()
	env = append(env, spec.Environment...)

	cmd := exec.CommandContext(ctx, commandPath, spec.Args...)
	cmd.Dir = workDir
	cmd.Env = env

	// Platform-specific setup is handled in command_unix.go or command_windows.go
	setupProcessAttributes(cmd)

	if err := applyCredential(cmd, spec.RunAsUser); err != nil {
		return nil, err
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	r.logger.Debugf("Spawning command, path: '%s', args: %v, working directory: '%s', user: '%s'",
		commandPath, spec.Args, workDir, spec.RunAsUser)

	if err := cmd.Start(); err != nil {
		return nil, errors.NewSpawnError("failed to start command", err).
			WithContext("command", commandPath)
	}

	r.logger.Debugf("Command spawned, path: '%s', PID: %d", commandPath, cmd.Process.Pid)

	err = cmd.Wait()
	if err != nil {
		if ctx.Err() != nil {
			return output.Bytes(), errors.NewCancelledError("command was cancelled", ctx.Err()).
				WithContext("command", commandPath)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return output.Bytes(), errors.NewExitError("command exited with non-zero status", err).
				WithContext("command", commandPath).
				WithContext("exit_code", exitErr.ExitCode())
		}
		return output.Bytes(), errors.NewSpawnError("command failed", err).
			WithContext("command", commandPath)
	}

	return output.Bytes(), nil
}

// resolveCommandPath resolves relative script paths against the unit
// root. Bare command names without a path separator are left to PATH
// lookup by os/exec.
func (r *stdCommandRunner) resolveCommandPath(command string) (string, error) {
	if filepath.IsAbs(command) {
		return command, r.ensureExecutable(command)
	}

	if !strings.ContainsRune(command, os.PathSeparator) {
		return command, nil
	}

	if r.unitRoot == "" {
		return "", errors.NewValidationError("relative command path requires a unit root", nil).
			WithContext("command", command)
	}

	// Absolute before cmd.Dir is derived: a relative path would be
	// re-resolved against the working directory after the chdir
	resolved, err := filepath.Abs(filepath.Join(r.unitRoot, command))
	if err != nil {
		return "", errors.NewIOError("failed to resolve command path", err).
			WithContext("command", command)
	}
	return resolved, r.ensureExecutable(resolved)
}

// ensureExecutable checks that a file exists and adds the execute bit
// if it is missing
func (r *stdCommandRunner) ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.NewIOError("command file does not exist", err).WithContext("path", path)
	}

	mode := info.Mode()
	if mode&0111 != 0 {
		return nil
	}

	if err := os.Chmod(path, mode|0111); err != nil {
		return errors.NewPermissionError("failed to make command executable", err).WithContext("path", path)
	}

	r.logger.Warnf("Command file was not executable, added execute bit, path: %s", path)
	return nil
}

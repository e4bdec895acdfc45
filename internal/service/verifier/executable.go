package verifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"
)

// waitDelay bounds how long output pipes are drained after the process is killed.
const waitDelay = time.Second

// Executable runs the installed binary with args and captures its standard output.
// err is reserved for failures to run at all; a non-zero exit is reported via exitCode.
type Executable interface {
	RunAndCapture(ctx context.Context, args ...string) (stdout string, exitCode int, err error)
	// Path identifies the executable in messages.
	Path() string
}

// ExecRunner runs a binary from disk.
type ExecRunner struct {
	path    string
	timeout time.Duration
	env     []string
}

// NewExecRunner returns a runner for the binary at path. A positive timeout
// bounds each invocation.
func NewExecRunner(path string, timeout time.Duration) *ExecRunner {
	return &ExecRunner{
		path:    filepath.Clean(path),
		timeout: timeout,
	}
}

// WithEnv replaces the environment of every invocation.
func (r *ExecRunner) WithEnv(env []string) *ExecRunner {
	r.env = env
	return r
}

// Path returns the binary location.
func (r *ExecRunner) Path() string {
	return r.path
}

// RunAndCapture executes the binary and returns stdout and the exit code.
func (r *ExecRunner) RunAndCapture(ctx context.Context, args ...string) (string, int, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = r.env
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if err == nil {
		return stdout.String(), 0, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout.String(), -1, fmt.Errorf("%s: %w", r.path, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), exitErr.ExitCode(), nil
	}

	return stdout.String(), -1, err
}

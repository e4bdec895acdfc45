package verifier

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/oshokin/phraseling-formula/internal/domain/formula"
	"github.com/oshokin/phraseling-formula/internal/logger"
)

type (
	// CheckResult is the outcome of one passing invocation.
	CheckResult struct {
		Invocation string
		Expected   string
		Output     string
	}

	// VerifyResult lists the checks that passed, in order.
	VerifyResult struct {
		Executable string
		Checks     []CheckResult
	}
)

// Verify runs checks against exe in order and stops at the first failure.
// A non-zero exit yields a *formula.VerifyError of kind formula.ErrExecutionFailed,
// a missing substring one of kind formula.ErrUnexpectedOutput.
func Verify(ctx context.Context, exe Executable, checks []formula.Check) (*VerifyResult, error) {
	ctx = logger.WithName(ctx, "verifier")

	result := &VerifyResult{
		Executable: exe.Path(),
		Checks:     make([]CheckResult, 0, len(checks)),
	}

	for _, check := range checks {
		invocation := describe(exe.Path(), check.Args)

		logger.DebugKV(ctx, "Running check", "invocation", invocation)

		stdout, exitCode, err := exe.RunAndCapture(ctx, check.Args...)
		if err != nil {
			return result, &formula.VerifyError{
				Kind:       formula.ErrExecutionFailed,
				Invocation: invocation,
				Expected:   check.Expect,
				Actual:     stdout,
				ExitCode:   exitCode,
				Cause:      err,
			}
		}

		if exitCode != 0 {
			return result, &formula.VerifyError{
				Kind:       formula.ErrExecutionFailed,
				Invocation: invocation,
				Expected:   check.Expect,
				Actual:     stdout,
				ExitCode:   exitCode,
			}
		}

		if !strings.Contains(stdout, check.Expect) {
			return result, &formula.VerifyError{
				Kind:       formula.ErrUnexpectedOutput,
				Invocation: invocation,
				Expected:   check.Expect,
				Actual:     strings.TrimSpace(stdout),
			}
		}

		logger.InfoKV(ctx, "Check passed", "invocation", invocation, "expected", check.Expect)

		result.Checks = append(result.Checks, CheckResult{
			Invocation: invocation,
			Expected:   check.Expect,
			Output:     stdout,
		})
	}

	return result, nil
}

// describe renders an invocation the way a user would type it.
func describe(path string, args []string) string {
	return strings.Join(append([]string{filepath.Base(path)}, args...), " ")
}

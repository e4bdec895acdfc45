package formula

import (
	"errors"
	"fmt"
)

// Resolution errors.
var (
	// ErrChecksumMismatch means the archive digest differs from the recorded one.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrChecksumMissing means no digest was recorded or supplied for the revision.
	ErrChecksumMissing = errors.New("checksum not recorded")
	// ErrInvalidVersion means the version is not an exact semantic version.
	ErrInvalidVersion = errors.New("invalid version")
	// ErrUnknownPackage means the catalog has no such package.
	ErrUnknownPackage = errors.New("unknown package")
	// ErrUnknownVersion means the package has no such version or revision.
	ErrUnknownVersion = errors.New("unknown version")
)

// Installation errors.
var (
	// ErrArtifactCopyFailed means an artifact could not be placed.
	ErrArtifactCopyFailed = errors.New("artifact copy failed")
	// ErrMissingSourcePath means an artifact source does not exist in the extracted archive.
	ErrMissingSourcePath = errors.New("missing source path")
)

// Verification errors.
var (
	// ErrExecutionFailed means the executable could not run or exited non-zero.
	ErrExecutionFailed = errors.New("execution failed")
	// ErrUnexpectedOutput means the output lacks the expected substring.
	ErrUnexpectedOutput = errors.New("unexpected output")
)

// Manifest validation errors.
var (
	ErrEmptyName          = errors.New("package name is empty")
	ErrNoArtifacts        = errors.New("manifest has no artifacts")
	ErrNoExecutable       = errors.New("manifest has checks but no executable artifact")
	ErrUnknownRole        = errors.New("unknown destination role")
	ErrUnsafePath         = errors.New("artifact source escapes the archive root")
	ErrIncompletePrefixes = errors.New("executable, shared-data and documentation roots are required")
)

type (
	// ChecksumError describes a digest mismatch. It wraps ErrChecksumMismatch.
	ChecksumError struct {
		Path     string
		Expected string
		Got      string
	}

	// VerifyError describes a failed smoke-test invocation.
	// Kind is ErrExecutionFailed or ErrUnexpectedOutput.
	VerifyError struct {
		Kind       error
		Invocation string
		Expected   string
		Actual     string
		ExitCode   int
		Cause      error
	}

	// StageError tags an error with the stage of the install invocation that produced it.
	StageError struct {
		Stage StageName
		Err   error
	}
)

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Path, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

func (e *VerifyError) Error() string {
	if errors.Is(e.Kind, ErrExecutionFailed) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v: %v", e.Invocation, e.Kind, e.Cause)
		}

		return fmt.Sprintf("%s: %v: exit code %d", e.Invocation, e.Kind, e.ExitCode)
	}

	return fmt.Sprintf("%s: %v\nExpected substring: %q\nActual output:      %q", e.Invocation, e.Kind, e.Expected, e.Actual)
}

// Unwrap exposes both the kind and the underlying cause.
func (e *VerifyError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Cause}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage recorded in err, if any.
func StageOf(err error) (StageName, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}

	return "", false
}

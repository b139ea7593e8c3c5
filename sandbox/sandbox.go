// Package sandbox dispatches approved commands to OS-appropriate
// confinement backends: Seatbelt on macOS, Landlock on Linux, restricted
// cmd/PowerShell trees on Windows, a remote execution API, or a
// deterministic dummy for tests. Each backend implements prepare/run and
// nothing else is assumed shared between them.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Sentinel errors returned by sandbox backends.
var (
	// ErrSpawn indicates the target binary is missing or unrunnable.
	ErrSpawn = errors.New("sandbox: cannot spawn command")

	// ErrConfinementSetup indicates the sandbox root or access rules
	// could not be constructed.
	ErrConfinementSetup = errors.New("sandbox: confinement setup failed")

	// ErrTimeout indicates the backend could not complete within the
	// request timeout. Local backends terminate the child and return a
	// timeout ExecResult instead; this error is reserved for transports
	// that cannot produce one.
	ErrTimeout = errors.New("sandbox: execution timed out")

	// ErrUnsupported indicates the backend cannot run on this system.
	ErrUnsupported = errors.New("sandbox: backend unsupported on this platform")
)

// TimeoutExitCode is the synthetic exit code reported when a child is
// terminated for exceeding the request timeout (128 + a timeout signal
// slot, distinguishable from any real exit status below 128).
const TimeoutExitCode = 128 + 64

// envDummySandbox forces the Dummy backend for every dispatch when set to
// a non-empty value, letting callers exercise the full approval path
// without touching the operating system.
const envDummySandbox = "EXECGUARD_DUMMY_SANDBOX"

// DummyForced reports whether the environment forces the Dummy backend.
func DummyForced() bool {
	return os.Getenv(envDummySandbox) != ""
}

// ExecRequest describes one confined execution.
type ExecRequest struct {
	// ID correlates the request across transports. Backends that need
	// one assign it when empty.
	ID string

	// Argv is the program and its arguments. Must be non-empty.
	Argv []string

	// Workdir is the working directory for the child; empty means the
	// caller's current directory.
	Workdir string

	// Timeout bounds execution; zero means the backend default.
	Timeout time.Duration
}

// ExecResult is the structured outcome of a confined execution.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration

	// TimedOut reports that the child was terminated at the timeout and
	// ExitCode is the synthetic TimeoutExitCode.
	TimedOut bool
}

// Paths declares the filesystem surface a confined child may touch,
// derived from the classified command's argument tags.
type Paths struct {
	// ReadOnly lists paths the child may read.
	ReadOnly []string

	// Writable lists paths the child may create, modify, or delete.
	Writable []string
}

// Backend is one confinement mechanism. Implementations must honor the
// request timeout (terminate and report rather than hang) and must never
// let the child observe or mutate paths outside the confined surface.
type Backend interface {
	// Name returns a short identifier (e.g. "landlock", "dummy").
	Name() string

	// Available reports whether this backend is functional here.
	Available() bool

	// Prepare constructs any per-execution confinement state rooted at
	// workdir. Failures wrap ErrConfinementSetup.
	Prepare(workdir string) error

	// Run executes the request and returns its structured result.
	Run(ctx context.Context, req ExecRequest) (*ExecResult, error)
}

// Dispatch prepares the backend and runs the request, honoring the request
// timeout. When the environment forces the dummy sandbox, the configured
// backend is bypassed entirely.
func Dispatch(ctx context.Context, b Backend, req ExecRequest) (*ExecResult, error) {
	if len(req.Argv) == 0 {
		return nil, fmt.Errorf("%w: empty argument vector", ErrSpawn)
	}
	if DummyForced() {
		b = NewDummy()
	}
	if !b.Available() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, b.Name())
	}
	if err := b.Prepare(req.Workdir); err != nil {
		if errors.Is(err, ErrConfinementSetup) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrConfinementSetup, err)
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	return b.Run(ctx, req)
}

package execguard

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the execguard package.
var (
	// ErrMalformedRow indicates a threat database row could not be parsed.
	// The database refuses to build on the first malformed row.
	ErrMalformedRow = errors.New("execguard: malformed threat database row")

	// ErrUnknownCommand indicates no threat record exists for a command.
	// This is recoverable: the compiler falls back to the generic rule.
	ErrUnknownCommand = errors.New("execguard: no threat record for command")

	// ErrParse indicates an argument vector could not be tokenized.
	ErrParse = errors.New("execguard: cannot parse argument vector")

	// ErrPolicyLoad indicates a policy file could not be loaded or failed
	// validation. The process must refuse to proceed unprotected.
	ErrPolicyLoad = errors.New("execguard: policy load failed")

	// ErrWatcherClosed indicates the watcher has already been closed.
	ErrWatcherClosed = errors.New("execguard: watcher already closed")

	// ErrNotApproved indicates a command was refused execution because its
	// classification did not meet the configured approval bar.
	ErrNotApproved = errors.New("execguard: command not approved for execution")
)

// MalformedRowError is returned when a threat database row has the wrong
// column count, an unknown shell, or a risk value outside [0.0, 1.0].
// It wraps ErrMalformedRow so errors.Is(err, ErrMalformedRow) still works.
type MalformedRowError struct {
	// Line is the 1-based line number of the offending row.
	Line int
	// Reason explains what was wrong with the row.
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("%s: line %d: %s", ErrMalformedRow.Error(), e.Line, e.Reason)
}

func (e *MalformedRowError) Unwrap() error {
	return ErrMalformedRow
}

// UnknownCommandError is returned by risk aggregation when the threat
// database holds no record at all for a (shell, command) pair.
// It wraps ErrUnknownCommand.
type UnknownCommandError struct {
	Shell   Shell
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("%s: %s/%s", ErrUnknownCommand.Error(), e.Shell, e.Command)
}

func (e *UnknownCommandError) Unwrap() error {
	return ErrUnknownCommand
}

// ParseError is returned when an argument vector cannot be tokenized.
// It wraps ErrParse.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrParse.Error(), e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// PolicyLoadError is returned when a policy or override file cannot be
// loaded, or when a compiled rule fails its example validation.
// It wraps ErrPolicyLoad.
type PolicyLoadError struct {
	// Source names the file or rule that failed.
	Source string
	// Reason explains the failure.
	Reason string
}

func (e *PolicyLoadError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrPolicyLoad.Error(), e.Source, e.Reason)
}

func (e *PolicyLoadError) Unwrap() error {
	return ErrPolicyLoad
}

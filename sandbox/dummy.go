package sandbox

import "context"

// dummyStdout is the canned output of the dummy backend, fixed so callers
// can assert on it.
const dummyStdout = "execguard dummy sandbox: command not executed\n"

// Dummy is a backend that performs no real execution: it mutates nothing
// and returns a deterministic canned result. Used for testing callers
// without invoking the operating system.
type Dummy struct{}

// NewDummy returns the dummy backend.
func NewDummy() *Dummy {
	return &Dummy{}
}

func (*Dummy) Name() string { return "dummy" }

func (*Dummy) Available() bool { return true }

// Prepare is a no-op: the dummy backend touches no filesystem state.
func (*Dummy) Prepare(string) error { return nil }

// Run returns the fixed successful result without spawning anything.
func (*Dummy) Run(_ context.Context, _ ExecRequest) (*ExecResult, error) {
	return &ExecResult{
		Stdout:   dummyStdout,
		Stderr:   "",
		ExitCode: 0,
		Duration: 0,
	}, nil
}

package sandbox

import (
	"context"
	"os/exec"
)

// None executes commands without confinement. It exists for environments
// where the caller has decided confinement is unnecessary or impossible;
// selection of None is always an explicit choice, never a silent fallback.
type None struct{}

// NewNone returns the unconfined backend.
func NewNone() *None {
	return &None{}
}

func (*None) Name() string { return "none" }

func (*None) Available() bool { return true }

func (*None) Prepare(string) error { return nil }

// Run spawns the child directly, still honoring the request timeout and
// output capture.
func (*None) Run(ctx context.Context, req ExecRequest) (*ExecResult, error) {
	cmd := exec.CommandContext(ctx, req.Argv[0], req.Argv[1:]...)
	if req.Workdir != "" {
		cmd.Dir = req.Workdir
	}
	return runLocal(ctx, cmd)
}

package sandbox

import (
	"context"
	"os"
	"os/exec"
	"runtime"

	"github.com/sangderenard/execguard/internal/pathutil"
)

// seatbeltExecutable is the only sandbox-exec considered, guarding against
// a malicious binary injected on PATH. If /usr/bin has been tampered with,
// the attacker already has root.
const seatbeltExecutable = "/usr/bin/sandbox-exec"

// Seatbelt confines a child with macOS profile-based sandboxing: the child
// runs under sandbox-exec with a generated deny-default SBPL profile
// restricting filesystem access to the declared read/write surface.
type Seatbelt struct {
	paths Paths
}

// NewSeatbelt returns a Seatbelt backend confining execution to the given
// path surface.
func NewSeatbelt(paths Paths) *Seatbelt {
	return &Seatbelt{paths: paths}
}

func (*Seatbelt) Name() string { return "seatbelt" }

func (*Seatbelt) Available() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	_, err := os.Stat(seatbeltExecutable)
	return err == nil
}

// Prepare resolves the declared paths to absolute, symlink-free form so
// the profile cannot be escaped through a link inside a writable root.
func (s *Seatbelt) Prepare(workdir string) error {
	resolved, err := pathutil.ResolveAll(workdir, s.paths.ReadOnly)
	if err != nil {
		return err
	}
	s.paths.ReadOnly = resolved
	resolved, err = pathutil.ResolveAll(workdir, s.paths.Writable)
	if err != nil {
		return err
	}
	if workdir != "" {
		resolved = append(resolved, workdir)
	}
	s.paths.Writable = resolved
	return nil
}

func (s *Seatbelt) Run(ctx context.Context, req ExecRequest) (*ExecResult, error) {
	profile := buildSeatbeltProfile(s.paths)
	args := []string{"-p", profile, "--"}
	args = append(args, req.Argv...)
	cmd := exec.CommandContext(ctx, seatbeltExecutable, args...)
	if req.Workdir != "" {
		cmd.Dir = req.Workdir
	}
	return runLocal(ctx, cmd)
}

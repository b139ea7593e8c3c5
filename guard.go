package execguard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sangderenard/execguard/sandbox"
)

// Guard couples a policy watcher with a sandbox backend: commands are
// classified first and only approved ones reach the executor.
type Guard struct {
	w          *Watcher
	backend    sandbox.Backend
	allowMatch bool
	logger     *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithBackend sets the sandbox backend. Without it the guard picks the
// platform backend per request, confined to the paths the classification
// declared.
func WithBackend(b sandbox.Backend) GuardOption {
	return func(g *Guard) { g.backend = b }
}

// WithAllowMatch approves commands classified as match in addition to
// safe ones. Forbidden and unverified commands are never approved.
func WithAllowMatch(allow bool) GuardOption {
	return func(g *Guard) { g.allowMatch = allow }
}

// WithGuardLogger sets the logger. Defaults to slog.Default().
func WithGuardLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) { g.logger = l }
}

// NewGuard returns a Guard classifying against w's current policy.
func NewGuard(w *Watcher, opts ...GuardOption) *Guard {
	g := &Guard{w: w, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ApproveResult reports whether a command may execute and the
// classification that decided it.
type ApproveResult struct {
	Approved       bool
	Classification Classification
}

// Approve classifies argv and decides whether it may execute. Safe
// commands are approved; match commands only when the guard allows them.
func (g *Guard) Approve(argv []string, workdir string) (ApproveResult, error) {
	c, err := g.w.Classify(argv, workdir)
	if err != nil {
		return ApproveResult{}, err
	}
	res := ApproveResult{Classification: c}
	switch c.Result {
	case VerdictSafe:
		res.Approved = true
	case VerdictMatch:
		res.Approved = g.allowMatch
	}
	g.logger.Debug("approval decision",
		"program", argv[0],
		"result", string(c.Result),
		"approved", res.Approved)
	return res, nil
}

// Execute approves and runs the request. Refusal returns ErrNotApproved
// with the classification reason; nothing is spawned for refused commands.
func (g *Guard) Execute(ctx context.Context, req sandbox.ExecRequest) (*sandbox.ExecResult, error) {
	res, err := g.Approve(req.Argv, req.Workdir)
	if err != nil {
		return nil, err
	}
	if !res.Approved {
		reason := res.Classification.Reason
		if reason == "" {
			reason = string(res.Classification.Result)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotApproved, reason)
	}

	backend := g.backend
	if backend == nil {
		backend = sandbox.Detect(DeclaredPaths(res.Classification.Match, req.Workdir))
	}
	g.logger.Info("executing command",
		"program", req.Argv[0],
		"backend", backend.Name(),
		"result", string(res.Classification.Result))
	return sandbox.Dispatch(ctx, backend, req)
}

// DeclaredPaths derives the sandbox filesystem surface from a match's
// annotated arguments: readable-file arguments become read-only roots and
// writeable-file arguments become writable roots. A nil match (safe
// commands carry one too, but unverified ones do not) yields only the
// working directory.
func DeclaredPaths(m *MatchInfo, workdir string) sandbox.Paths {
	var p sandbox.Paths
	if workdir != "" {
		p.Writable = append(p.Writable, workdir)
	}
	if m == nil {
		return p
	}
	for _, arg := range m.Args {
		switch arg.Type {
		case ArgTypeReadableFile:
			p.ReadOnly = append(p.ReadOnly, arg.Value)
		case ArgTypeWriteableFile:
			p.Writable = append(p.Writable, arg.Value)
		}
	}
	return p
}

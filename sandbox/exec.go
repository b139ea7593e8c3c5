package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"time"
)

// defaultMaxOutputBytes caps captured stdout/stderr per stream (10 MB).
const defaultMaxOutputBytes = 10 * 1024 * 1024

// runLocal executes cmd under ctx, capturing bounded output and converting
// process outcomes into an ExecResult. A context deadline terminates the
// whole process group and yields a timeout result rather than an error;
// a missing or unrunnable binary wraps ErrSpawn.
func runLocal(ctx context.Context, cmd *exec.Cmd) (*ExecResult, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{buf: &stdout, limit: defaultMaxOutputBytes}
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: defaultMaxOutputBytes}

	setupProcessGroup(cmd)

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	res := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			res.ExitCode = TimeoutExitCode
			res.TimedOut = true
			return res, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		var pathErr *fs.PathError
		if errors.Is(err, exec.ErrNotFound) || errors.As(err, &pathErr) {
			return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
		}
		return nil, err
	}
	return res, nil
}

// limitedWriter writes into buf and silently discards past limit, reporting
// full length to avoid io.ErrShortWrite.
type limitedWriter struct {
	buf   *bytes.Buffer
	limit int
}

var _ io.Writer = (*limitedWriter)(nil)

func (w *limitedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) <= remaining {
		return w.buf.Write(p)
	}
	if _, err := w.buf.Write(p[:remaining]); err != nil {
		return 0, err
	}
	return len(p), nil
}

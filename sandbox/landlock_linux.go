//go:build linux

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sangderenard/execguard/internal/pathutil"
)

// Function variables for Landlock operations, overridden in tests.
var (
	landlockCreateRulesetFn = landlockCreateRuleset
	landlockAddRuleFn       = landlockAddPathBeneathRule
	landlockRestrictSelfFn  = landlockRestrictSelf
	prctlFn                 = unix.Prctl
	openPathFn              = unix.Open
	closePathFn             = unix.Close
	executableFn            = os.Executable
)

// Raw landlock syscalls. x/sys/unix defines the syscall numbers, access
// constants, and attribute structs, but no entry points.

func landlockCreateRuleset(attr *unix.LandlockRulesetAttr, size uintptr, flags int) (int, error) {
	fd, _, errno := unix.Syscall(unix.SYS_LANDLOCK_CREATE_RULESET,
		uintptr(unsafe.Pointer(attr)), size, uintptr(flags))
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

func landlockAddPathBeneathRule(rulesetFd int, attr *unix.LandlockPathBeneathAttr, flags int) error {
	_, _, errno := unix.Syscall6(unix.SYS_LANDLOCK_ADD_RULE,
		uintptr(rulesetFd), unix.LANDLOCK_RULE_PATH_BENEATH,
		uintptr(unsafe.Pointer(attr)), uintptr(flags), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func landlockRestrictSelf(rulesetFd int, flags int) error {
	_, _, errno := unix.Syscall(unix.SYS_LANDLOCK_RESTRICT_SELF,
		uintptr(rulesetFd), uintptr(flags), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// Landlock confines a child with the Linux Landlock LSM: a deny-default
// filesystem ruleset restricts access to the declared read/write surface.
// Because landlock_restrict_self binds to the calling process, the backend
// re-executes the current binary as a helper that applies the ruleset and
// then execs the real command.
type Landlock struct {
	paths Paths
}

// NewLandlock returns a Landlock backend confining execution to the given
// path surface.
func NewLandlock(paths Paths) *Landlock {
	return &Landlock{paths: paths}
}

func (*Landlock) Name() string { return "landlock" }

// Available probes the kernel ABI version without creating a ruleset.
// Landlock requires kernel 5.13 or newer.
func (*Landlock) Available() bool {
	abi, err := landlockCreateRulesetFn(nil, 0, unix.LANDLOCK_CREATE_RULESET_VERSION)
	return err == nil && abi >= 1
}

// Prepare resolves the declared paths to absolute, symlink-free form so a
// link inside a writable root cannot widen the ruleset.
func (l *Landlock) Prepare(workdir string) error {
	resolved, err := pathutil.ResolveAll(workdir, l.paths.ReadOnly)
	if err != nil {
		return err
	}
	l.paths.ReadOnly = resolved
	resolved, err = pathutil.ResolveAll(workdir, l.paths.Writable)
	if err != nil {
		return err
	}
	if workdir != "" {
		resolved = append(resolved, workdir)
	}
	l.paths.Writable = resolved
	return nil
}

// Run re-executes the current binary in sandbox-init mode. The confinement
// config travels over a pipe on an inherited descriptor; the helper applies
// Landlock and execs the requested command, so the child observed here is
// the confined command itself.
func (l *Landlock) Run(ctx context.Context, req ExecRequest) (*ExecResult, error) {
	self, err := executableFn()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot locate own executable: %v", ErrSpawn, err)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: config pipe: %v", ErrConfinementSetup, err)
	}
	defer func() { _ = r.Close() }()

	cmd := exec.CommandContext(ctx, self, req.Argv...)
	if req.Workdir != "" {
		cmd.Dir = req.Workdir
	}
	// ExtraFiles[0] becomes fd 3 in the child.
	cmd.ExtraFiles = []*os.File{r}
	cmd.Env = append(os.Environ(), initEnvKey+"=3")

	if err := writeInitConfig(w, initConfig{
		ReadOnly: l.paths.ReadOnly,
		Writable: l.paths.Writable,
	}); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("%w: write config: %v", ErrConfinementSetup, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: close config pipe: %v", ErrConfinementSetup, err)
	}

	return runLocal(ctx, cmd)
}

// applyLandlock creates a Landlock ruleset for the config and restricts the
// current process. Runs only in the re-exec helper.
func applyLandlock(cfg initConfig) error {
	abi, err := landlockCreateRulesetFn(nil, 0, unix.LANDLOCK_CREATE_RULESET_VERSION)
	if err != nil || abi < 1 {
		return fmt.Errorf("landlock not available (requires kernel >= 5.13)")
	}

	handled := uint64(unix.LANDLOCK_ACCESS_FS_EXECUTE | unix.LANDLOCK_ACCESS_FS_WRITE_FILE |
		unix.LANDLOCK_ACCESS_FS_READ_FILE | unix.LANDLOCK_ACCESS_FS_READ_DIR |
		unix.LANDLOCK_ACCESS_FS_REMOVE_DIR | unix.LANDLOCK_ACCESS_FS_REMOVE_FILE |
		unix.LANDLOCK_ACCESS_FS_MAKE_CHAR | unix.LANDLOCK_ACCESS_FS_MAKE_DIR |
		unix.LANDLOCK_ACCESS_FS_MAKE_REG | unix.LANDLOCK_ACCESS_FS_MAKE_SOCK |
		unix.LANDLOCK_ACCESS_FS_MAKE_FIFO | unix.LANDLOCK_ACCESS_FS_MAKE_BLOCK |
		unix.LANDLOCK_ACCESS_FS_MAKE_SYM)
	if abi >= 2 {
		handled |= unix.LANDLOCK_ACCESS_FS_REFER
	}
	if abi >= 3 {
		handled |= unix.LANDLOCK_ACCESS_FS_TRUNCATE
	}

	attr := unix.LandlockRulesetAttr{Access_fs: handled}
	rulesetFd, err := landlockCreateRulesetFn(&attr, unsafe.Sizeof(attr), 0)
	if err != nil {
		return fmt.Errorf("landlock_create_ruleset: %w", err)
	}
	defer func() { _ = closePathFn(rulesetFd) }()

	writeAccess := uint64(unix.LANDLOCK_ACCESS_FS_EXECUTE | unix.LANDLOCK_ACCESS_FS_WRITE_FILE |
		unix.LANDLOCK_ACCESS_FS_READ_FILE | unix.LANDLOCK_ACCESS_FS_READ_DIR |
		unix.LANDLOCK_ACCESS_FS_REMOVE_DIR | unix.LANDLOCK_ACCESS_FS_REMOVE_FILE |
		unix.LANDLOCK_ACCESS_FS_MAKE_DIR | unix.LANDLOCK_ACCESS_FS_MAKE_REG |
		unix.LANDLOCK_ACCESS_FS_MAKE_SYM)
	if abi >= 2 {
		writeAccess |= unix.LANDLOCK_ACCESS_FS_REFER
	}
	if abi >= 3 {
		writeAccess |= unix.LANDLOCK_ACCESS_FS_TRUNCATE
	}
	readAccess := uint64(unix.LANDLOCK_ACCESS_FS_EXECUTE |
		unix.LANDLOCK_ACCESS_FS_READ_FILE | unix.LANDLOCK_ACCESS_FS_READ_DIR)

	// System paths needed for dynamic linking and basic tooling. Missing
	// paths are skipped.
	for _, p := range []string{"/usr", "/lib", "/lib64", "/etc", "/bin", "/sbin", "/proc", "/dev/null", "/dev/urandom", "/tmp"} {
		if err := landlockAddPath(rulesetFd, p, readAccess); err != nil {
			continue
		}
	}
	for _, p := range cfg.ReadOnly {
		if err := landlockAddPath(rulesetFd, p, readAccess); err != nil {
			return fmt.Errorf("landlock read rule for %q: %w", p, err)
		}
	}
	for _, p := range cfg.Writable {
		if err := landlockAddPath(rulesetFd, p, writeAccess); err != nil {
			return fmt.Errorf("landlock write rule for %q: %w", p, err)
		}
	}

	// landlock_restrict_self requires no_new_privs.
	if err := prctlFn(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_NO_NEW_PRIVS): %w", err)
	}
	if err := landlockRestrictSelfFn(rulesetFd, 0); err != nil {
		return fmt.Errorf("landlock_restrict_self: %w", err)
	}
	return nil
}

// landlockAddPath adds a path-beneath rule anchored at path.
func landlockAddPath(rulesetFd int, path string, allowedAccess uint64) error {
	fd, err := openPathFn(path, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer func() { _ = closePathFn(fd) }()

	attr := unix.LandlockPathBeneathAttr{
		Allowed_access: allowedAccess,
		Parent_fd:      int32(fd),
	}
	if err := landlockAddRuleFn(rulesetFd, &attr, 0); err != nil {
		return fmt.Errorf("landlock_add_rule: %w", err)
	}
	return nil
}

//go:build windows

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"github.com/sangderenard/execguard/internal/pathutil"
)

// outputFileName is where the restricted shell redirects combined output
// inside the sandbox tree.
const outputFileName = "output.txt"

// restrictedShell is the shared machinery of the Windows backends: a
// disposable directory tree the child is started in, rejection of command
// lines that climb out of it, and combined output captured to a file and
// relayed back.
type restrictedShell struct {
	backendName string
	shellExe    string
	// buildArgs produces the shell invocation that runs command with
	// combined output redirected to outFile.
	buildArgs func(command, outFile string) []string

	// Account optionally names a low-privilege local account the child
	// should run under. Prepare verifies it exists and is enabled via WMI.
	Account string

	root string
}

// CmdRestricted runs commands under cmd.exe inside a disposable sandbox
// directory.
type CmdRestricted struct {
	restrictedShell
}

// NewCmdRestricted returns a cmd.exe backend.
func NewCmdRestricted() *CmdRestricted {
	return &CmdRestricted{restrictedShell{
		backendName: "cmd-restricted",
		shellExe:    "cmd.exe",
		buildArgs: func(command, outFile string) []string {
			return []string{"/d", "/s", "/c", command + " > " + quoteWindowsArg(outFile) + " 2>&1"}
		},
	}}
}

// PowerShellRestricted runs commands under powershell.exe inside a
// disposable sandbox directory.
type PowerShellRestricted struct {
	restrictedShell
}

// NewPowerShellRestricted returns a powershell.exe backend.
func NewPowerShellRestricted() *PowerShellRestricted {
	return &PowerShellRestricted{restrictedShell{
		backendName: "powershell-restricted",
		shellExe:    "powershell.exe",
		buildArgs: func(command, outFile string) []string {
			return []string{
				"-NoProfile", "-NonInteractive", "-Command",
				"& { " + command + " } *> " + quoteWindowsArg(outFile),
			}
		},
	}}
}

func (r *restrictedShell) Name() string { return r.backendName }

func (r *restrictedShell) Available() bool {
	_, err := exec.LookPath(r.shellExe)
	return err == nil
}

// Prepare builds the disposable sandbox tree and, when an account is
// configured, verifies it via WMI before anything runs.
func (r *restrictedShell) Prepare(workdir string) error {
	root, err := os.MkdirTemp("", "execguard-sandbox-")
	if err != nil {
		return fmt.Errorf("sandbox tree: %w", err)
	}
	if err := os.Mkdir(filepath.Join(root, "work"), 0o755); err != nil {
		_ = os.RemoveAll(root)
		return fmt.Errorf("sandbox tree: %w", err)
	}
	r.root = root

	if r.Account != "" {
		ok, err := lookupLocalAccount(r.Account)
		if err != nil {
			_ = r.Cleanup()
			return fmt.Errorf("account lookup %q: %w", r.Account, err)
		}
		if !ok {
			_ = r.Cleanup()
			return fmt.Errorf("account %q not found or disabled", r.Account)
		}
	}
	return nil
}

// Run executes the request's argv as a single shell command line inside the
// sandbox tree. Command lines containing a parent-directory escape are
// rejected before the shell sees them.
func (r *restrictedShell) Run(ctx context.Context, req ExecRequest) (*ExecResult, error) {
	if r.root == "" {
		return nil, fmt.Errorf("%w: backend not prepared", ErrConfinementSetup)
	}
	// The tree is single-use: it goes away with the run that used it.
	defer func() { _ = r.Cleanup() }()
	for _, tok := range req.Argv {
		if pathutil.HasParentEscape(tok) {
			return nil, fmt.Errorf("%w: argument %q escapes the sandbox directory", ErrConfinementSetup, tok)
		}
	}

	command := joinWindowsCommand(req.Argv)
	outFile := filepath.Join(r.root, outputFileName)

	cmd := exec.CommandContext(ctx, r.shellExe, r.buildArgs(command, outFile)...)
	cmd.Dir = filepath.Join(r.root, "work")
	res, err := runLocal(ctx, cmd)
	if err != nil {
		return nil, err
	}

	// Combined output was redirected inside the sandbox; relay it.
	out, readErr := os.ReadFile(outFile)
	if readErr == nil {
		res.Stdout = string(out)
	}
	return res, nil
}

// Cleanup removes the disposable sandbox tree.
func (r *restrictedShell) Cleanup() error {
	if r.root == "" {
		return nil
	}
	err := os.RemoveAll(r.root)
	r.root = ""
	return err
}

// joinWindowsCommand renders argv as a single cmd-style command line,
// quoting arguments that contain whitespace.
func joinWindowsCommand(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = quoteWindowsArg(a)
	}
	return strings.Join(parts, " ")
}

func quoteWindowsArg(a string) string {
	if a != "" && !strings.ContainsAny(a, " \t\"") {
		return a
	}
	return `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
}

// lookupLocalAccount reports whether an enabled local account with the
// given name exists, queried over WMI.
func lookupLocalAccount(name string) (bool, error) {
	if err := ole.CoInitialize(0); err != nil {
		oleErr, ok := err.(*ole.OleError)
		// S_FALSE: COM already initialized on this thread.
		if !ok || oleErr.Code() != 1 {
			return false, fmt.Errorf("CoInitialize: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return false, fmt.Errorf("create WbemScripting.SWbemLocator: %w", err)
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return false, fmt.Errorf("query IDispatch: %w", err)
	}
	defer locator.Release()

	serviceRaw, err := oleutil.CallMethod(locator, "ConnectServer", nil, `root\cimv2`)
	if err != nil {
		return false, fmt.Errorf("connect WMI: %w", err)
	}
	service := serviceRaw.ToIDispatch()
	defer service.Release()

	query := fmt.Sprintf(
		"SELECT Name FROM Win32_UserAccount WHERE LocalAccount = TRUE AND Disabled = FALSE AND Name = '%s'",
		strings.ReplaceAll(name, "'", "''"))
	resultRaw, err := oleutil.CallMethod(service, "ExecQuery", query)
	if err != nil {
		return false, fmt.Errorf("WMI query: %w", err)
	}
	result := resultRaw.ToIDispatch()
	defer result.Release()

	countVar, err := oleutil.GetProperty(result, "Count")
	if err != nil {
		return false, fmt.Errorf("WMI result count: %w", err)
	}
	return countVar.Val > 0, nil
}

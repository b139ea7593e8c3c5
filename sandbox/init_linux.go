//go:build linux

package sandbox

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
)

// initEnvKey signals that the process is a re-exec sandbox-init helper. Its
// value is the file descriptor number of the pipe carrying the serialized
// confinement config.
const initEnvKey = "_EXECGUARD_SANDBOX"

// Function variables for dependency injection in tests.
var (
	applyLandlockFn = applyLandlock
	syscallExecFn   = syscall.Exec
	osExitFn        = os.Exit
	lookPathFn      = exec.LookPath
)

// initConfig is the confinement configuration passed to the re-exec helper
// over a pipe.
type initConfig struct {
	ReadOnly []string `json:"read_only,omitempty"`
	Writable []string `json:"writable,omitempty"`
}

func writeInitConfig(w io.Writer, cfg initConfig) error {
	return json.NewEncoder(w).Encode(cfg)
}

// MaybeInit checks whether the current process was launched in re-exec
// sandbox-init mode. If so it applies the confinement and execs the real
// command, never returning. Callers invoke it first thing in main; the
// false return means this is a normal invocation.
func MaybeInit() bool {
	fdStr := os.Getenv(initEnvKey)
	if fdStr == "" {
		return false
	}
	osExitFn(sandboxInit(fdStr))
	return true // unreachable when osExitFn terminates
}

// sandboxInit reads the config from the inherited descriptor, restricts the
// process, and execs the requested command.
func sandboxInit(fdStr string) int {
	// landlock_restrict_self binds to the calling thread. The process will
	// exec or exit, so the thread is never unlocked.
	runtime.LockOSThread()

	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "execguard: invalid config fd %q: %v\n", fdStr, err)
		return 1
	}
	configFile := os.NewFile(uintptr(fd), "config-pipe")
	if configFile == nil {
		fmt.Fprintf(os.Stderr, "execguard: cannot open config fd %d\n", fd)
		return 1
	}
	defer func() { _ = configFile.Close() }()

	var cfg initConfig
	if err := json.NewDecoder(configFile).Decode(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "execguard: decode config: %v\n", err)
		return 1
	}

	if err := applyLandlockFn(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "execguard: landlock: %v\n", err)
		return 1
	}

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "execguard: no command to exec\n")
		return 1
	}
	// Clear the marker so the confined command cannot re-enter init mode.
	_ = os.Unsetenv(initEnvKey)

	path, err := lookPathFn(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "execguard: %s: %v\n", args[0], err)
		return 127
	}
	if err := syscallExecFn(path, args, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "execguard: exec %s: %v\n", path, err)
		return 1
	}
	return 0 // unreachable
}

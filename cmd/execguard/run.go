package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sangderenard/execguard"
	"github.com/sangderenard/execguard/sandbox"
)

var (
	backendName string
	apiURL      string
	runTimeout  time.Duration
	runWorkdir  string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <program> [args...]",
	Short: "Classify a command and execute it in a sandbox if approved",
	Long: `Classify a command and, when approved, execute it inside a sandbox and
relay its output and exit code.

Safe commands run immediately. Match commands require interactive
confirmation of the write targets. Forbidden and unverified commands never
run.

Example:
  execguard run --threat-db threats.csv -- ls -l /etc
  execguard run --threat-db threats.csv --backend dummy -- rm stale.lock`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

func init() {
	runCmd.Flags().StringVar(&backendName, "backend", "auto",
		"sandbox backend: auto, none, dummy, or api")
	runCmd.Flags().StringVar(&apiURL, "api-url", os.Getenv("EXECGUARD_API_URL"),
		"websocket endpoint for the api backend")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0,
		"kill the command after this duration (0 = no limit)")
	runCmd.Flags().StringVar(&runWorkdir, "workdir", "",
		"working directory for classification and execution")
	rootCmd.AddCommand(runCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	w, err := newWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	c, err := w.Classify(args, runWorkdir)
	if err != nil {
		return err
	}

	allowMatch := false
	switch c.Result {
	case execguard.VerdictForbidden:
		fmt.Fprintf(os.Stderr, "refused: %s\n", c.Reason)
		exitCode = exitForbidden
		return nil
	case execguard.VerdictUnverified:
		fmt.Fprintln(os.Stderr, "refused: no policy rule covers this command")
		exitCode = exitUnverified
		return nil
	case execguard.VerdictMatch:
		if !confirmMatch(args, c) {
			fmt.Fprintln(os.Stderr, "denied")
			exitCode = exitMatch
			return nil
		}
		allowMatch = true
	}

	backend, err := selectBackend(execguard.DeclaredPaths(c.Match, runWorkdir))
	if err != nil {
		return err
	}

	guard := execguard.NewGuard(w,
		execguard.WithBackend(backend),
		execguard.WithAllowMatch(allowMatch))
	res, err := guard.Execute(cmd.Context(), sandbox.ExecRequest{
		ID:      uuid.NewString(),
		Argv:    args,
		Workdir: runWorkdir,
		Timeout: runTimeout,
	})
	if err != nil {
		return err
	}

	os.Stdout.WriteString(res.Stdout)
	os.Stderr.WriteString(res.Stderr)
	if res.TimedOut {
		fmt.Fprintln(os.Stderr, "command timed out")
	}
	exitCode = res.ExitCode
	return nil
}

// selectBackend resolves the --backend flag. auto picks the platform
// backend confined to the declared paths.
func selectBackend(paths sandbox.Paths) (sandbox.Backend, error) {
	switch backendName {
	case "auto", "":
		return sandbox.Detect(paths), nil
	case "none":
		return sandbox.NewNone(), nil
	case "dummy":
		return sandbox.NewDummy(), nil
	case "api":
		if apiURL == "" {
			return nil, errors.New("--api-url (or EXECGUARD_API_URL) is required for the api backend")
		}
		return sandbox.NewGenericApi(sandbox.GenericApiConfig{
			URL:    apiURL,
			Secret: []byte(os.Getenv("EXECGUARD_API_SECRET")),
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backendName)
	}
}

// confirmMatch asks the operator to approve a command that writes files.
// Non-interactive sessions auto-deny.
func confirmMatch(argv []string, c execguard.Classification) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "match verdict requires interactive confirmation; denying")
		return false
	}

	fmt.Fprintf(os.Stderr, "command: %s\n", strings.Join(argv, " "))
	if c.Match != nil {
		for _, arg := range c.Match.Args {
			if arg.Type == execguard.ArgTypeWriteableFile {
				fmt.Fprintf(os.Stderr, "  writes: %s\n", arg.Value)
			}
		}
	}
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "allow these writes? [y/n]: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.TrimSpace(strings.ToLower(line)) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
	}
}

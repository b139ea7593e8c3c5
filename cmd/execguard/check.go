package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/shell"
)

var (
	requireSafe bool
	shellString string
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] -- <program> [args...]",
	Short: "Classify a command without executing it",
	Long: `Classify a command against the compiled policy and print the JSON
classification to standard output.

Exit codes: 0 for safe; 14 for forbidden. With --require-safe, match exits
12 and unverified exits 13.

Example:
  execguard check --threat-db threats.csv -- ls -l /etc
  execguard check --threat-db threats.csv --shell-string "cp a.txt b.txt dest/"`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		argv := args
		if shellString != "" {
			if len(args) > 0 {
				return errors.New("--shell-string and positional arguments are mutually exclusive")
			}
			fields, err := shell.Fields(shellString, nil)
			if err != nil {
				return fmt.Errorf("cannot split shell string: %w", err)
			}
			argv = fields
		}
		if len(argv) == 0 {
			return errors.New("no command given")
		}
		return checkArgv(argv)
	},
}

var checkJSONCmd = &cobra.Command{
	Use:   "check-json <request>",
	Short: "Classify a command given as a JSON request",
	Long: `Classify a command described by a JSON object of the form
{"program": "ls", "args": ["-l", "/etc"]}. Output and exit codes are the
same as check.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var req struct {
			Program string   `json:"program"`
			Args    []string `json:"args"`
		}
		if err := json.Unmarshal([]byte(args[0]), &req); err != nil {
			return fmt.Errorf("invalid request: %w", err)
		}
		if req.Program == "" {
			return errors.New("invalid request: missing program")
		}
		return checkArgv(append([]string{req.Program}, req.Args...))
	},
}

func init() {
	checkCmd.Flags().BoolVar(&requireSafe, "require-safe", false,
		"exit nonzero for match and unverified verdicts, not only forbidden")
	checkCmd.Flags().StringVar(&shellString, "shell-string", "",
		"classify a whole shell command line instead of positional arguments")
	checkJSONCmd.Flags().BoolVar(&requireSafe, "require-safe", false,
		"exit nonzero for match and unverified verdicts, not only forbidden")
	rootCmd.AddCommand(checkCmd, checkJSONCmd)
}

// checkArgv classifies argv, prints the JSON classification, and sets the
// process exit code from the verdict.
func checkArgv(argv []string) error {
	w, err := newWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	c, err := w.Classify(argv, "")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(c); err != nil {
		return err
	}
	exitCode = verdictExitCode(c.Result, requireSafe)
	return nil
}

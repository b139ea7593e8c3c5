package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sangderenard/execguard"
)

// Exit codes reported by check and run. Forbidden commands always exit
// nonzero; match and unverified map to their codes only under
// --require-safe.
const (
	exitMatch      = 12
	exitUnverified = 13
	exitForbidden  = 14
)

var (
	threatDBPath string
	policyPath   string

	// exitCode is the process exit code decided by the executed command.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "execguard",
	Short: "Classify and safely execute commands proposed by automated agents",
	Long: `execguard evaluates a proposed command against a policy compiled from a
tabular threat database and reports one of four verdicts: safe, match,
forbidden, or unverified. The run subcommand executes approved commands
inside a platform sandbox.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&threatDBPath, "threat-db",
		os.Getenv("EXECGUARD_THREAT_DB"), "path to the threat database CSV")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "",
		"path to a precompiled policy YAML, substituted for the compiled one")
}

func execute() (int, error) {
	if err := rootCmd.Execute(); err != nil {
		return exitCode, err
	}
	return exitCode, nil
}

// newWatcher builds a watcher from the persistent flags. A bad policy file
// is fatal: the process refuses to proceed unprotected.
func newWatcher() (*execguard.Watcher, error) {
	cfg := execguard.WatcherConfig{ThreatDBPath: threatDBPath}
	if policyPath != "" {
		data, err := os.ReadFile(policyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", execguard.ErrPolicyLoad, err)
		}
		rules, err := execguard.LoadPolicy(data, policyPath)
		if err != nil {
			return nil, err
		}
		cfg.Policy = rules
		return execguard.NewWatcher(cfg)
	}
	if threatDBPath == "" {
		return nil, errors.New("either --threat-db or --policy is required")
	}
	return execguard.NewWatcher(cfg)
}

// verdictExitCode maps a verdict to the process exit code.
func verdictExitCode(v execguard.Verdict, requireSafe bool) int {
	switch v {
	case execguard.VerdictForbidden:
		return exitForbidden
	case execguard.VerdictMatch:
		if requireSafe {
			return exitMatch
		}
	case execguard.VerdictUnverified:
		if requireSafe {
			return exitUnverified
		}
	}
	return 0
}

package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/sangderenard/execguard"
)

var (
	overridesPath    string
	compileOutput    string
	compileThreshold float64
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags]",
	Short: "Compile the threat database into a policy file",
	Long: `Compile the tabular threat database into the canonical YAML policy and
write it to --output or standard output. Compilation is deterministic: the
same database and overrides always produce byte-identical policy.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if threatDBPath == "" {
			return errors.New("--threat-db is required")
		}
		db, err := execguard.LoadThreatDBFile(threatDBPath)
		if err != nil {
			return err
		}

		cfg := execguard.DefaultCompileConfig()
		cfg.ForbiddenThreshold = compileThreshold
		if overridesPath != "" {
			overrides, err := execguard.LoadOverridesFile(overridesPath)
			if err != nil {
				return err
			}
			cfg.Overrides = overrides
		}

		rules, err := execguard.Compile(db, cfg)
		if err != nil {
			return err
		}
		data, err := rules.Encode()
		if err != nil {
			return err
		}
		if compileOutput == "" || compileOutput == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		return os.WriteFile(compileOutput, data, 0o644)
	},
}

func init() {
	compileCmd.Flags().StringVar(&overridesPath, "overrides", "",
		"YAML file of hand-authored rules taking precedence over compiled ones")
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "",
		"write the policy here instead of standard output")
	compileCmd.Flags().Float64Var(&compileThreshold, "threshold",
		execguard.DefaultForbiddenThreshold,
		"baseline risk at or above which a command is forbidden")
	rootCmd.AddCommand(compileCmd)
}

package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/loceval/internal/lint"
)

var lintConfigFile string

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check fixtures, config, and artifacts for problems",
	Long:  "Read-only workspace checker: unknown config keys, missing directories, tasks without goldens, absent run artifacts, and judge assets.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		errs := lint.New(cfg, lintConfigFile).Run()
		out := cmd.OutOrStdout()
		if len(errs) == 0 {
			fmt.Fprintln(out, "PASS: no issues found")
			return nil
		}
		fmt.Fprintln(out, "FAIL:")
		for _, e := range errs {
			fmt.Fprintf(out, "- %s\n", e)
		}
		return eris.Errorf("lint: %d issue(s) found", len(errs))
	},
}

func init() {
	lintCmd.Flags().StringVar(&lintConfigFile, "config-file", "config.yaml", "config file checked for unknown keys")
	rootCmd.AddCommand(lintCmd)
}

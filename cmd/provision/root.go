package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	verbose    bool
	dryRun     bool
	logFile    string
}

func newRootCmd(app *appContext) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Converge a developer workstation, one idempotent step at a time",
		Long: `provision walks an ordered list of steps. Each step checks whether the
machine already has what it wants and acts only when it does not. The run
stops at the first failure; re-running is safe.

Without a subcommand the embedded workstation profile is applied.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), app, flags)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Run document to use (default: embedded workstation profile)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging, including diffs")
	cmd.PersistentFlags().BoolVar(&flags.dryRun, "dry-run", false, "Evaluate checks without running any action")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Append a JSON audit log to this file (overrides settings.log_file)")

	cmd.AddCommand(newApplyCmd(app, flags))
	cmd.AddCommand(newVerifyCmd(app, flags))
	cmd.AddCommand(newShowCmd(app, flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

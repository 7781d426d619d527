package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/provision/internal/tui"
)

type showOptions struct {
	Types bool
}

func newShowCmd(app *appContext, root *rootFlags) *cobra.Command {
	opts := &showOptions{}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List the steps of a run document in execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Types {
				fmt.Fprint(app.stdout, tui.RenderTypes(newRegistry(app).Describe()))
				return nil
			}
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, tui.RenderPlan(cfg))
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Types, "types", false, "Document the available step types and their fields instead")
	return cmd
}

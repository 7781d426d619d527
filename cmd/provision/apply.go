package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/provision/internal/engine"
	"github.com/alexisbeaulieu97/provision/internal/logger"
	"github.com/alexisbeaulieu97/provision/internal/tui"
	"github.com/alexisbeaulieu97/provision/internal/tui/components"
	"github.com/alexisbeaulieu97/provision/internal/validation"
)

func newApplyCmd(app *appContext, root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Run every step of a run document, stopping at the first failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), app, root)
		},
	}
}

func runApply(ctx context.Context, app *appContext, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	dryRun := flags.dryRun || cfg.Settings.DryRun
	verbose := flags.verbose || cfg.Settings.Verbose

	auditFile, err := logFilePath(flags, cfg)
	if err != nil {
		return fmt.Errorf("log file: %w", err)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	base, err := logger.New(logger.Options{
		Level:         level,
		HumanReadable: true,
		Writer:        app.stderr,
		AuditFile:     auditFile,
	})
	if err != nil {
		return err
	}
	defer base.Close()

	log := base.WithFields(map[string]any{
		"run_id": uuid.NewString(),
		"config": cfg.Name,
	})
	ctx = logger.WithContext(ctx, log)

	steps, err := engine.Compile(cfg, newRegistry(app))
	if err != nil {
		return err
	}

	results, runErr := engine.NewRunner(engine.Options{DryRun: dryRun}).Run(ctx, steps)

	var (
		statuses []components.ValidationStatus
		valErr   error
	)
	if runErr == nil && !dryRun && len(cfg.Validations) > 0 {
		var checks []validation.Result
		checks, valErr = validation.Run(ctx, cfg.Validations)
		for _, check := range checks {
			statuses = append(statuses, components.ValidationStatus{Passed: check.Passed, Message: check.Message})
		}
	}

	fmt.Fprint(app.stdout, tui.RenderRun(cfg.Name, results, dryRun, statuses))

	if runErr != nil {
		return runErr
	}
	return valErr
}

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/provision/internal/engine"
	"github.com/alexisbeaulieu97/provision/internal/logger"
	"github.com/alexisbeaulieu97/provision/internal/model"
	"github.com/alexisbeaulieu97/provision/internal/tui"
)

type verifyOptions struct {
	JSON bool
}

func newVerifyCmd(app *appContext, root *rootFlags) *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Report which steps would change the machine, without changing it",
		Long: `Verify evaluates every step's check and reports its state. Nothing is
installed, written or prompted for. The exit status is 0 when every step is
satisfied and 1 when an apply would change something.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), app, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output results in JSON format")
	return cmd
}

func runVerify(ctx context.Context, app *appContext, flags *rootFlags, opts *verifyOptions) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	level := "warn"
	if flags.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, HumanReadable: true, Writer: app.stderr})
	if err != nil {
		return err
	}
	ctx = logger.WithContext(ctx, log)

	summary, err := engine.Verify(ctx, cfg, newRegistry(app))
	if err != nil {
		return err
	}

	if opts.JSON {
		if err := writeVerifyJSON(app, cfg.Name, summary); err != nil {
			return err
		}
	} else {
		fmt.Fprint(app.stdout, tui.RenderVerification(cfg.Name, summary))
	}

	if summary.NeedsApply() {
		return fmt.Errorf("%d of %d step(s) not converged", summary.Missing+summary.Drifted+summary.Blocked, summary.TotalSteps)
	}
	return nil
}

type verifyJSONStep struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Diff    string `json:"diff,omitempty"`
	Error   string `json:"error,omitempty"`
}

type verifyJSONPayload struct {
	Config    string           `json:"config"`
	Total     int              `json:"total"`
	Satisfied int              `json:"satisfied"`
	Missing   int              `json:"missing"`
	Drifted   int              `json:"drifted"`
	Blocked   int              `json:"blocked"`
	Unknown   int              `json:"unknown"`
	Duration  string           `json:"duration"`
	Steps     []verifyJSONStep `json:"steps"`
}

func writeVerifyJSON(app *appContext, name string, summary *model.VerificationSummary) error {
	payload := verifyJSONPayload{
		Config:    name,
		Total:     summary.TotalSteps,
		Satisfied: summary.Satisfied,
		Missing:   summary.Missing,
		Drifted:   summary.Drifted,
		Blocked:   summary.Blocked,
		Unknown:   summary.Unknown,
		Duration:  summary.Duration.String(),
		Steps:     make([]verifyJSONStep, 0, len(summary.Results)),
	}
	for _, res := range summary.Results {
		step := verifyJSONStep{ID: res.StepID, Status: string(res.Status), Message: res.Message, Diff: res.Details}
		if res.Error != nil {
			step.Error = res.Error.Error()
		}
		payload.Steps = append(payload.Steps, step)
	}

	encoder := json.NewEncoder(app.stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

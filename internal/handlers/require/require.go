// Package requirehandler asserts that a prerequisite tool is installed and,
// optionally, recent enough. It never changes the machine.
package requirehandler

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"

	"github.com/hashicorp/go-version"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/handlers/internalexec"
	"github.com/alexisbeaulieu97/provision/internal/model"
	provisionerrors "github.com/alexisbeaulieu97/provision/pkg/errors"
)

var versionPattern = regexp.MustCompile(`\d+(?:\.\d+)+`)

type requireHandler struct{}

// New creates a new require handler instance.
func New() handler.Handler {
	return &requireHandler{}
}

var _ handler.Handler = (*requireHandler)(nil)

func (h *requireHandler) Metadata() handler.Metadata {
	return handler.Metadata{
		Type:        config.TypeRequire,
		Version:     "1.0.0",
		Description: "Fails the run when a prerequisite tool is missing or too old.",
	}
}

func (h *requireHandler) Schema() any {
	return config.RequireStep{}
}

func (h *requireHandler) Evaluate(ctx context.Context, step *config.Step) (*model.EvaluationResult, error) {
	cfg := step.Require
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("require configuration missing"))
	}

	var constraints version.Constraints
	if cfg.Constraint != "" {
		parsed, err := version.NewConstraint(cfg.Constraint)
		if err != nil {
			return nil, handler.NewValidationError(step.ID, fmt.Errorf("constraint: %w", err))
		}
		constraints = parsed
	}

	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		return unmet(step.ID, model.StatusMissing, fmt.Sprintf("%s not found on PATH", cfg.Command)), nil
	}
	if constraints == nil {
		return &model.EvaluationResult{
			StepID:       step.ID,
			CurrentState: model.StatusSatisfied,
			Message:      fmt.Sprintf("%s found at %s", cfg.Command, path),
		}, nil
	}

	args := cfg.VersionArgs
	if len(args) == 0 {
		args = []string{"--version"}
	}
	res, err := internalexec.Capture(ctx, exec.CommandContext(ctx, path, args...))
	if err != nil {
		return unmet(step.ID, model.StatusBlocked, fmt.Sprintf("%s could not report its version: %v", cfg.Command, err)), nil
	}

	raw := versionPattern.FindString(res.Stdout + "\n" + res.Stderr)
	if raw == "" {
		return unmet(step.ID, model.StatusBlocked, fmt.Sprintf("no version number in output of %s %v", cfg.Command, args)), nil
	}
	found, err := version.NewVersion(raw)
	if err != nil {
		return unmet(step.ID, model.StatusBlocked, fmt.Sprintf("unparseable version %q: %v", raw, err)), nil
	}
	if !constraints.Check(found) {
		return unmet(step.ID, model.StatusDrifted, fmt.Sprintf("%s %s does not satisfy %s", cfg.Command, found, constraints)), nil
	}

	return &model.EvaluationResult{
		StepID:       step.ID,
		CurrentState: model.StatusSatisfied,
		Message:      fmt.Sprintf("%s %s satisfies %s", cfg.Command, found, constraints),
	}, nil
}

// Apply cannot fix the environment; reaching it means the requirement is
// unmet and the run must stop.
func (h *requireHandler) Apply(ctx context.Context, eval *model.EvaluationResult, step *config.Step) (*model.StepResult, error) {
	cfg := step.Require
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("require configuration missing"))
	}

	reason := "requirement not met"
	if eval != nil && eval.Message != "" {
		reason = eval.Message
	}
	err := provisionerrors.NewEnvironmentError(cfg.Command, reason, cfg.Hint)
	return &model.StepResult{
		StepID:  step.ID,
		Status:  model.StatusFailed,
		Message: err.Error(),
		Error:   err,
	}, handler.NewExecutionError(step.ID, err)
}

func unmet(stepID string, state model.VerificationStatus, msg string) *model.EvaluationResult {
	return &model.EvaluationResult{
		StepID:         stepID,
		CurrentState:   state,
		RequiresAction: true,
		Message:        msg,
	}
}

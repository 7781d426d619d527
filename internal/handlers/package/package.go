package packagehandler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/model"
)

type packageHandler struct {
	// geteuid is swapped in tests to exercise the sudo prefix.
	geteuid func() int
}

// New creates a new package handler instance.
func New() handler.Handler {
	return &packageHandler{geteuid: os.Geteuid}
}

var _ handler.Handler = (*packageHandler)(nil)

func (h *packageHandler) Metadata() handler.Metadata {
	return handler.Metadata{
		Type:        config.TypePackage,
		Version:     "1.0.0",
		Description: "Installs OS (apt) or Python (pip) packages that are not yet present.",
	}
}

func (h *packageHandler) Schema() any {
	return config.PackageStep{}
}

// evaluationData is handed from Evaluate to Apply.
type evaluationData struct {
	Installed []string
	Missing   []string
}

var packageNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*`)

// baseName strips version pins ("black==24.1", "git=1:2.43") so the package
// database can be queried by name.
func baseName(spec string) string {
	if m := packageNamePattern.FindString(spec); m != "" {
		return m
	}
	return spec
}

func (h *packageHandler) Evaluate(ctx context.Context, step *config.Step) (*model.EvaluationResult, error) {
	cfg := step.Package
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("package configuration missing"))
	}
	mgr, err := h.manager(cfg)
	if err != nil {
		return nil, handler.NewValidationError(step.ID, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, handler.NewStateError(step.ID, fmt.Errorf("context cancelled: %w", err))
	}

	data := &evaluationData{}
	for _, spec := range cfg.Packages {
		ok, err := mgr.Installed(ctx, baseName(spec))
		if err != nil {
			return nil, handler.NewStateError(step.ID, fmt.Errorf("query %s package %s: %w", mgr.Name(), spec, err))
		}
		if ok {
			data.Installed = append(data.Installed, spec)
		} else {
			data.Missing = append(data.Missing, spec)
		}
	}

	if len(data.Missing) == 0 {
		return &model.EvaluationResult{
			StepID:         step.ID,
			CurrentState:   model.StatusSatisfied,
			RequiresAction: false,
			Message:        fmt.Sprintf("all %s packages installed: %s", mgr.Name(), strings.Join(cfg.Packages, ", ")),
			InternalData:   data,
		}, nil
	}

	return &model.EvaluationResult{
		StepID:         step.ID,
		CurrentState:   model.StatusMissing,
		RequiresAction: true,
		Message:        fmt.Sprintf("%s packages not installed: %s", mgr.Name(), strings.Join(data.Missing, ", ")),
		Diff:           fmt.Sprintf("Would install: %s", strings.Join(data.Missing, ", ")),
		InternalData:   data,
	}, nil
}

func (h *packageHandler) Apply(ctx context.Context, eval *model.EvaluationResult, step *config.Step) (*model.StepResult, error) {
	cfg := step.Package
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("package configuration missing"))
	}
	mgr, err := h.manager(cfg)
	if err != nil {
		return nil, handler.NewValidationError(step.ID, err)
	}

	var data *evaluationData
	if eval != nil {
		data, _ = eval.InternalData.(*evaluationData)
	}
	if data == nil {
		eval, err = h.Evaluate(ctx, step)
		if err != nil {
			return nil, err
		}
		data, _ = eval.InternalData.(*evaluationData)
	}

	if len(data.Missing) == 0 {
		return &model.StepResult{StepID: step.ID, Status: model.StatusSkipped, Message: "no changes needed"}, nil
	}

	if cfg.Update {
		if err := mgr.Update(ctx); err != nil {
			return failed(step.ID, fmt.Errorf("refresh %s package index: %w", mgr.Name(), err))
		}
	}

	if err := mgr.Install(ctx, data.Missing); err != nil {
		return failed(step.ID, fmt.Errorf("install %s packages: %w", mgr.Name(), err))
	}

	return &model.StepResult{
		StepID:  step.ID,
		Status:  model.StatusSuccess,
		Message: fmt.Sprintf("installed %s packages: %s", mgr.Name(), strings.Join(data.Missing, ", ")),
	}, nil
}

func failed(stepID string, err error) (*model.StepResult, error) {
	return &model.StepResult{
		StepID:  stepID,
		Status:  model.StatusFailed,
		Message: err.Error(),
		Error:   err,
	}, handler.NewExecutionError(stepID, err)
}

func (h *packageHandler) manager(cfg *config.PackageStep) (manager, error) {
	switch cfg.Manager {
	case "", "apt":
		sudo := cfg.Sudo && h.geteuid() != 0
		return &apt{sudo: sudo}, nil
	case "pip":
		return newPip(cfg.Pip)
	default:
		return nil, fmt.Errorf("unsupported package manager %q", cfg.Manager)
	}
}

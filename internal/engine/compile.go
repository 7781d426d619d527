package engine

import (
	"context"
	"errors"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/logger"
	"github.com/alexisbeaulieu97/provision/internal/model"
	provisionerrors "github.com/alexisbeaulieu97/provision/pkg/errors"
)

// Compile turns the enabled steps of cfg into runner steps backed by the
// handlers in reg. Every step type must have a handler.
func Compile(cfg *config.Config, reg *handler.Registry) ([]Step, error) {
	if cfg == nil {
		return nil, provisionerrors.NewValidationError("config", "configuration is nil", nil)
	}

	enabled := cfg.EnabledSteps()
	steps := make([]Step, 0, len(enabled))
	for i := range enabled {
		h, err := reg.Get(enabled[i].Type)
		if err != nil {
			return nil, provisionerrors.NewValidationError(enabled[i].ID+".type", err.Error(), err)
		}
		steps = append(steps, bind(h, enabled[i]))
	}
	return steps, nil
}

// bind wires a handler to one config step. Check stores the evaluation so
// Action can hand it to Apply without probing the machine twice.
func bind(h handler.Handler, cs config.Step) Step {
	step := cs
	var eval *model.EvaluationResult

	return Step{
		ID:   step.ID,
		Name: step.DisplayName(),
		Check: func(ctx context.Context) (bool, error) {
			result, err := h.Evaluate(ctx, &step)
			if err != nil {
				return false, err
			}
			eval = result

			log := logger.FromContext(ctx).WithFields(map[string]any{
				"step_id": step.ID,
				"state":   string(result.CurrentState),
			})
			if result.Message != "" {
				log.Info(result.Message)
			}
			if result.Diff != "" {
				log.Debug(result.Diff)
			}
			return !result.RequiresAction, nil
		},
		Action: func(ctx context.Context) error {
			current := eval
			eval = nil
			if current == nil {
				result, err := h.Evaluate(ctx, &step)
				if err != nil {
					return err
				}
				current = result
			}

			res, err := h.Apply(ctx, current, &step)
			if err != nil {
				return err
			}
			if res != nil && res.Status == model.StatusFailed {
				if res.Error != nil {
					return res.Error
				}
				return errors.New(res.Message)
			}
			if res != nil && res.Message != "" {
				logger.FromContext(ctx).WithFields(map[string]any{"step_id": step.ID}).Info(res.Message)
			}
			return nil
		},
	}
}

package engine

import (
	"context"
	"time"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/model"
)

// Verify evaluates every enabled step without applying anything. A step
// whose state cannot be read is reported as unknown; invalid configuration
// stops the report.
func Verify(ctx context.Context, cfg *config.Config, reg *handler.Registry) (*model.VerificationSummary, error) {
	start := time.Now()
	enabled := cfg.EnabledSteps()
	summary := &model.VerificationSummary{
		TotalSteps: len(enabled),
		Results:    make([]*model.VerificationResult, 0, len(enabled)),
	}

	for i := range enabled {
		step := &enabled[i]
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		result := &model.VerificationResult{StepID: step.ID, Name: step.DisplayName()}
		stepStart := time.Now()

		h, err := reg.Get(step.Type)
		if err != nil {
			result.Status = model.StatusBlocked
			result.Message = err.Error()
			result.Error = err
		} else if eval, err := h.Evaluate(ctx, step); err != nil {
			if hErr, ok := handler.AsError(err); ok {
				if _, invalid := hErr.(*handler.ValidationError); invalid {
					summary.Duration = time.Since(start)
					return summary, err
				}
			}
			result.Status = model.StatusUnknown
			result.Message = err.Error()
			result.Error = err
		} else {
			result.Status = eval.CurrentState
			result.Message = eval.Message
			result.Details = eval.Diff
		}

		result.Duration = time.Since(stepStart)
		result.Timestamp = time.Now()
		summary.Add(result)
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

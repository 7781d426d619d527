// Package engine runs provisioning steps in order, one at a time, stopping
// at the first failure.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/alexisbeaulieu97/provision/internal/logger"
	"github.com/alexisbeaulieu97/provision/internal/model"
	provisionerrors "github.com/alexisbeaulieu97/provision/pkg/errors"
)

// Step is one unit of provisioning work.
type Step struct {
	ID   string
	Name string
	// Check reports whether the step is already satisfied. A nil Check means
	// the Action always runs.
	Check func(ctx context.Context) (bool, error)
	// Action converges the machine. It runs only when Check is nil or false.
	Action func(ctx context.Context) error
}

// Options configures a Runner.
type Options struct {
	// DryRun evaluates every Check but never runs an Action.
	DryRun bool
}

// Runner executes steps sequentially. A Runner holds no state between runs.
type Runner struct {
	dryRun bool
	now    func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	return &Runner{dryRun: opts.DryRun, now: time.Now}
}

// Run executes steps in order. It returns one result per step; steps after a
// failure are reported as not_run and never touched. The error, when
// non-nil, is a *errors.StepFailure naming the step that stopped the run.
func (r *Runner) Run(ctx context.Context, steps []Step) ([]model.StepResult, error) {
	log := logger.FromContext(ctx)
	log.Audit("run_start", map[string]any{"steps": len(steps), "dry_run": r.dryRun})

	results := make([]model.StepResult, 0, len(steps))
	for i, step := range steps {
		res, err := r.runStep(ctx, i, len(steps), step)
		results = append(results, res)
		if err != nil {
			for _, rest := range steps[i+1:] {
				results = append(results, model.StepResult{
					StepID:    rest.ID,
					Name:      rest.Name,
					Status:    model.StatusNotRun,
					Message:   "not attempted after earlier failure",
					Timestamp: r.now(),
				})
			}
			failure := provisionerrors.NewStepFailure(step.ID, step.Name, err)
			log.Audit("run_end", map[string]any{"status": model.StatusFailed, "failed_step": step.ID})
			return results, failure
		}
	}

	log.Audit("run_end", map[string]any{"status": model.StatusSuccess})
	return results, nil
}

func (r *Runner) runStep(ctx context.Context, index, total int, step Step) (model.StepResult, error) {
	log := logger.FromContext(ctx).WithFields(map[string]any{
		"step_id": step.ID,
		"step":    index + 1,
		"of":      total,
	})
	start := r.now()
	result := model.StepResult{StepID: step.ID, Name: step.Name, Timestamp: start}

	fail := func(err error) (model.StepResult, error) {
		result.Status = model.StatusFailed
		result.Message = err.Error()
		result.Error = err
		result.Duration = r.now().Sub(start)
		log.Error(err, "step failed")
		return result, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	log.Info(step.Name)

	if step.Check != nil {
		satisfied, err := step.Check(ctx)
		if err != nil {
			return fail(err)
		}
		if satisfied {
			result.Status = model.StatusSkipped
			result.Message = "already satisfied"
			result.Duration = r.now().Sub(start)
			log.Info("already satisfied; skipping")
			return result, nil
		}
	}

	if r.dryRun {
		result.Status = model.StatusWouldUpdate
		result.Message = "action would run"
		result.Duration = r.now().Sub(start)
		log.Info("dry run; action skipped")
		return result, nil
	}

	if step.Action == nil {
		return fail(errors.New("step has no action"))
	}
	if err := step.Action(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = errors.Join(err, ctxErr)
		}
		return fail(err)
	}

	result.Status = model.StatusSuccess
	result.Message = "applied"
	result.Duration = r.now().Sub(start)
	log.WithFields(map[string]any{"duration": result.Duration.String()}).Info("done")
	return result, nil
}

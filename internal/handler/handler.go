// Package handler defines the contract every step kind implements and the
// registry that maps a step's type to its handler.
package handler

import (
	"context"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/model"
)

// Handler converges one kind of step.
//
// Evaluate is the step's precondition check. It MUST NOT mutate the
// workstation: it only reads the current state and reports whether the
// action is needed. Apply performs the action and is only called when the
// preceding Evaluate reported RequiresAction.
type Handler interface {
	// Metadata identifies the handler and the step type it serves.
	Metadata() Metadata

	// Schema returns the zero value of the step's kind-specific
	// configuration. Registry.Describe reads its yaml keys to document the
	// step type.
	Schema() any

	// Evaluate reports whether the step's postcondition already holds.
	// Errors are *ValidationError, *ExecutionError or *StateError.
	Evaluate(ctx context.Context, step *config.Step) (*model.EvaluationResult, error)

	// Apply brings the workstation to the state the step describes. eval is
	// the result of the Evaluate call that preceded it; handlers may reuse
	// its InternalData instead of recomputing.
	Apply(ctx context.Context, eval *model.EvaluationResult, step *config.Step) (*model.StepResult, error)
}

package model

// EvaluationResult is what a handler's Evaluate reports about one step. The
// engine hands it back to Apply when the step needs action.
type EvaluationResult struct {
	StepID string

	// CurrentState is the observed state relative to the desired one.
	CurrentState VerificationStatus

	// RequiresAction is false only when the step's precondition holds.
	// Steps without a precondition (file emission) always set it.
	RequiresAction bool

	// Message explains what was found; it ends up in the log.
	Message string

	// Diff optionally previews the change, shown in dry-run and verify output.
	Diff string

	// InternalData carries handler-private state from Evaluate to Apply.
	InternalData any
}

package model

import (
	"time"
)

const (
	// StatusSuccess marks a step whose action ran and succeeded.
	StatusSuccess = "success"
	// StatusSkipped indicates the step was already satisfied, so its action never ran.
	StatusSkipped = "skipped"
	// StatusFailed marks a failure during step execution.
	StatusFailed = "failed"
	// StatusWouldUpdate indicates dry-run found work the action would perform.
	StatusWouldUpdate = "would_update"
	// StatusNotRun marks steps left unattempted after an earlier failure.
	StatusNotRun = "not_run"
)

// StepResult captures the outcome of executing a single step.
type StepResult struct {
	StepID    string
	Name      string
	Status    string
	Message   string
	Error     error
	Duration  time.Duration
	Timestamp time.Time
}

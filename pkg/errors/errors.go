package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EnvironmentError reports a prerequisite tool that is missing or misbehaves.
type EnvironmentError struct {
	Tool   string
	Reason string
	Hint   string
}

// NewEnvironmentError constructs an EnvironmentError.
func NewEnvironmentError(tool, reason, hint string) error {
	return &EnvironmentError{Tool: tool, Reason: reason, Hint: hint}
}

func (e *EnvironmentError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("environment error: %s: %s", e.Tool, e.Reason)
	if e.Hint != "" {
		msg += "\nHint: " + e.Hint
	}
	return msg
}

// ToolError is returned when an external tool exits unsuccessfully.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

// NewToolError constructs a ToolError. exitCode is -1 when the tool never ran
// to completion (not found, killed by a signal).
func NewToolError(tool string, args []string, exitCode int, output string, err error) error {
	return &ToolError{
		Tool:     tool,
		Args:     append([]string(nil), args...),
		ExitCode: exitCode,
		Output:   output,
		Err:      err,
	}
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	cmdline := strings.TrimSpace(e.Tool + " " + strings.Join(e.Args, " "))
	msg := fmt.Sprintf("tool failed: %s", cmdline)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" (exit status %d)", e.ExitCode)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// Unwrap exposes the underlying error.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StepFailure aborts a run. It names the step that failed and wraps the cause.
type StepFailure struct {
	StepID   string
	StepName string
	Err      error
}

// NewStepFailure constructs a StepFailure.
func NewStepFailure(stepID, stepName string, err error) error {
	return &StepFailure{StepID: stepID, StepName: stepName, Err: err}
}

func (e *StepFailure) Error() string {
	if e == nil {
		return ""
	}
	label := e.StepID
	if e.StepName != "" && e.StepName != e.StepID {
		label = fmt.Sprintf("%s (%s)", e.StepID, e.StepName)
	}
	if label == "" {
		return fmt.Sprintf("step failed: %v", e.Err)
	}
	return fmt.Sprintf("step %s failed: %v", label, e.Err)
}

// Unwrap exposes the root error.
func (e *StepFailure) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExitCode maps an error to a process exit status: 0 for nil, the exit code
// of the first ToolError in the chain when it has one, otherwise 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) && toolErr.ExitCode > 0 {
		return toolErr.ExitCode
	}
	return 1
}

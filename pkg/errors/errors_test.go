package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("workstation.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "workstation.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "workstation.yaml:12")
}

func TestValidationErrorIncludesField(t *testing.T) {
	t.Parallel()

	err := NewValidationError("steps[1].id", "duplicate step id", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "steps[1].id", validationErr.Field)
	require.Contains(t, err.Error(), "duplicate step id")
}

func TestEnvironmentErrorIncludesHint(t *testing.T) {
	t.Parallel()

	err := NewEnvironmentError("g++", "not found on PATH", "install build-essential")
	require.Contains(t, err.Error(), "g++")
	require.Contains(t, err.Error(), "Hint: install build-essential")
}

func TestToolErrorMessage(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("exit status 100")
	err := NewToolError("apt-get", []string{"install", "-y", "git"}, 100, "E: Unable to locate package", underlying)

	require.Contains(t, err.Error(), "apt-get install -y git")
	require.Contains(t, err.Error(), "exit status 100")
	require.Contains(t, err.Error(), "Unable to locate package")
	require.True(t, stdErrors.Is(err, underlying))
}

func TestStepFailureWrapsCause(t *testing.T) {
	t.Parallel()

	cause := NewToolError("ssh-keygen", nil, 2, "", nil)
	err := NewStepFailure("ssh_key", "Generate SSH key", cause)

	var failure *StepFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "ssh_key", failure.StepID)
	require.Contains(t, err.Error(), "ssh_key (Generate SSH key)")

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, 0},
		{"plain error", stdErrors.New("boom"), 1},
		{"tool exit code", NewStepFailure("pkg", "", NewToolError("apt-get", nil, 100, "", nil)), 100},
		{"tool never ran", NewStepFailure("pkg", "", NewToolError("apt-get", nil, -1, "", stdErrors.New("not found"))), 1},
		{"environment error", NewStepFailure("req", "", NewEnvironmentError("g++", "missing", "")), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/model"
)

type stubHandler struct {
	meta Metadata
}

func (s *stubHandler) Metadata() Metadata { return s.meta }
func (s *stubHandler) Schema() any        { return config.CommandStep{} }

func (s *stubHandler) Evaluate(ctx context.Context, step *config.Step) (*model.EvaluationResult, error) {
	return &model.EvaluationResult{StepID: step.ID, CurrentState: model.StatusSatisfied}, nil
}

func (s *stubHandler) Apply(ctx context.Context, eval *model.EvaluationResult, step *config.Step) (*model.StepResult, error) {
	return &model.StepResult{StepID: step.ID, Status: model.StatusSuccess}, nil
}

func TestRegistry_RegisterAndRetrieve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	h := &stubHandler{meta: Metadata{Type: "command", Version: "1.0.0"}}
	require.NoError(t, reg.Register(h))

	fetched, err := reg.Get("command")
	require.NoError(t, err)
	require.Same(t, h, fetched)
	require.Equal(t, []string{"command"}, reg.Types())
}

func TestRegistry_Describe(t *testing.T) {
	t.Parallel()

	reg := NewRegistry().MustRegister(
		&stubHandler{meta: Metadata{Type: "command", Version: "1.0.0", Description: "Runs a shell command."}},
	)

	infos := reg.Describe()
	require.Len(t, infos, 1)
	require.Equal(t, "command", infos[0].Type)
	require.Equal(t, "Runs a shell command.", infos[0].Description)

	byName := make(map[string]Field, len(infos[0].Fields))
	for _, f := range infos[0].Fields {
		byName[f.Name] = f
	}
	require.Equal(t, Field{Name: "command", Type: "string", Required: true}, byName["command"])
	require.Equal(t, Field{Name: "env", Type: "map[string]string"}, byName["env"])
	require.False(t, byName["check"].Required)
	require.Equal(t, "command", infos[0].Fields[0].Name, "fields keep declaration order")
}

func TestSchemaFields_IgnoresNonStructs(t *testing.T) {
	t.Parallel()

	require.Nil(t, SchemaFields(nil))
	require.Nil(t, SchemaFields("command"))
	require.NotEmpty(t, SchemaFields(&config.GitConfigStep{}))

	fields := SchemaFields(config.GitConfigStep{})
	require.Equal(t, "key", fields[0].Name)
	require.True(t, fields[0].Required)
	require.False(t, fields[1].Required, "required_without is not required")
}

func TestRegistry_PreventsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubHandler{meta: Metadata{Type: "command", Version: "1.0.0"}}))
	err := reg.Register(&stubHandler{meta: Metadata{Type: "command", Version: "1.0.0"}})
	require.ErrorContains(t, err, "already registered")
}

func TestRegistry_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Get("teleport")
	var notFound ErrHandlerNotFound
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "teleport", notFound.Type)
}

func TestRegistry_RejectsBadMetadata(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.Error(t, reg.Register(nil))
	require.Error(t, reg.Register(&stubHandler{meta: Metadata{Version: "1.0.0"}}))
	require.Error(t, reg.Register(&stubHandler{meta: Metadata{Type: "x"}}))
	require.Error(t, reg.Register(&stubHandler{meta: Metadata{Type: "x", Version: "one"}}))
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	t.Parallel()

	h := &stubHandler{meta: Metadata{Type: "file", Version: "1.0.0"}}
	require.Panics(t, func() { NewRegistry().MustRegister(h, h) })
}

func TestHandlerErrors(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	cases := []struct {
		name   string
		err    Error
		prefix string
		target error
	}{
		{"validation", NewValidationError("s1", cause), "validation error in step s1", &ValidationError{}},
		{"execution", NewExecutionError("s1", cause), "execution error in step s1", &ExecutionError{}},
		{"state", NewStateError("s1", cause), "state error in step s1", &StateError{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.prefix+": boom", tc.err.Error())
			assert.Equal(t, "s1", tc.err.StepID())
			assert.Equal(t, cause, tc.err.Unwrap())
			assert.True(t, errors.Is(tc.err, tc.target))

			wrapped := fmt.Errorf("outer: %w", tc.err)
			got, ok := AsError(wrapped)
			require.True(t, ok)
			assert.Equal(t, tc.err, got)
		})
	}

	assert.False(t, errors.Is(NewStateError("s", cause), &ExecutionError{}))
	_, ok := AsError(cause)
	assert.False(t, ok)
	assert.Equal(t, "state error in step s", NewStateError("s", nil).Error())
}

package commandhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/logger"
	"github.com/alexisbeaulieu97/provision/internal/model"
	provisionerrors "github.com/alexisbeaulieu97/provision/pkg/errors"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell assumptions do not hold on Windows")
	}
}

func writeScript(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o755))
}

func TestCommandHandler_EvaluateUsesCheckCommand(t *testing.T) {
	skipOnWindows(t)
	binDir := t.TempDir()
	writeScript(t, binDir, "check-script", `#!/bin/sh
if [ "$EXPECT_FAIL" = "1" ]; then
  echo "not yet"
  exit 1
fi
exit 0
`)
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	step := &config.Step{ID: "run_command", Type: config.TypeCommand, Command: &config.CommandStep{
		Command: "echo hello",
		Check:   "check-script",
	}}

	h := New()

	t.Setenv("EXPECT_FAIL", "0")
	eval, err := h.Evaluate(context.Background(), step)
	require.NoError(t, err)
	require.Equal(t, model.StatusSatisfied, eval.CurrentState)
	require.False(t, eval.RequiresAction)

	t.Setenv("EXPECT_FAIL", "1")
	eval, err = h.Evaluate(context.Background(), step)
	require.NoError(t, err)
	require.Equal(t, model.StatusMissing, eval.CurrentState)
	require.True(t, eval.RequiresAction)
	require.Contains(t, eval.Message, "not yet")
}

func TestCommandHandler_EvaluateWithoutCheckAlwaysRuns(t *testing.T) {
	t.Parallel()

	step := &config.Step{ID: "run_command", Type: config.TypeCommand, Command: &config.CommandStep{
		Command: "touch should_not_exist",
		WorkDir: t.TempDir(),
	}}

	eval, err := New().Evaluate(context.Background(), step)
	require.NoError(t, err)
	require.Equal(t, model.StatusUnknown, eval.CurrentState)
	require.True(t, eval.RequiresAction)
	require.NoFileExists(t, filepath.Join(step.Command.WorkDir, "should_not_exist"))
}

func TestCommandHandler_ApplyRunsCommandWithEnvAndWorkdir(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	workDir := t.TempDir()
	step := &config.Step{ID: "run_command", Type: config.TypeCommand, Command: &config.CommandStep{
		Command: "echo $CUSTOM_VALUE > result.txt",
		WorkDir: workDir,
		Env:     map[string]string{"CUSTOM_VALUE": "provision"},
	}}

	eval := &model.EvaluationResult{StepID: step.ID, CurrentState: model.StatusMissing, RequiresAction: true}
	res, err := New().Apply(context.Background(), eval, step)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, res.Status)

	data, err := os.ReadFile(filepath.Join(workDir, "result.txt"))
	require.NoError(t, err)
	require.Equal(t, "provision\n", string(data))
}

func TestCommandHandler_ApplyFailureCarriesExitCode(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	step := &config.Step{ID: "fail", Type: config.TypeCommand, Command: &config.CommandStep{Command: "exit 7"}}
	res, err := New().Apply(context.Background(), &model.EvaluationResult{RequiresAction: true}, step)
	require.Error(t, err)
	require.Equal(t, model.StatusFailed, res.Status)
	require.ErrorIs(t, err, &handler.ExecutionError{})
	require.Equal(t, 7, provisionerrors.ExitCode(err))
}

// echoStdin copies the first line the command reads to result.txt.
const echoStdin = `read -r line || true; printf '%s|%s' "$line" "$DEBIAN_FRONTEND" > result.txt`

func TestCommandHandler_InteractiveReadsOperatorInput(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	_, err = w.WriteString("from the operator\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	buf := &bytes.Buffer{}
	log, err := logger.New(logger.Options{Level: "error", Writer: buf})
	require.NoError(t, err)
	ctx := logger.WithContext(context.Background(), log)

	workDir := t.TempDir()
	step := &config.Step{ID: "open_editor", Type: config.TypeCommand, Command: &config.CommandStep{
		Command:     echoStdin,
		WorkDir:     workDir,
		Interactive: true,
	}}

	res, err := New(WithStdin(r)).Apply(ctx, &model.EvaluationResult{RequiresAction: true}, step)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, res.Status)

	data, err := os.ReadFile(filepath.Join(workDir, "result.txt"))
	require.NoError(t, err)
	line, _, _ := strings.Cut(string(data), "|")
	require.Equal(t, "from the operator", line)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "exec", entry["action"])
	require.Equal(t, true, entry["interactive"])
	require.Equal(t, workDir, entry["dir"])
}

func TestCommandHandler_NonInteractiveReadsNullDevice(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	_, err = w.WriteString("never read\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	buf := &bytes.Buffer{}
	log, err := logger.New(logger.Options{Level: "error", Writer: buf})
	require.NoError(t, err)
	ctx := logger.WithContext(context.Background(), log)

	workDir := t.TempDir()
	step := &config.Step{ID: "quiet", Type: config.TypeCommand, Command: &config.CommandStep{
		Command: echoStdin,
		WorkDir: workDir,
	}}

	_, err = New(WithStdin(r)).Apply(ctx, &model.EvaluationResult{RequiresAction: true}, step)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(workDir, "result.txt"))
	require.NoError(t, err)
	require.Equal(t, "|noninteractive", string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, false, entry["interactive"])
}

func TestCommandHandler_CheckThatCannotStartIsStateError(t *testing.T) {
	t.Parallel()

	step := &config.Step{ID: "bad_shell", Type: config.TypeCommand, Command: &config.CommandStep{
		Command: "true",
		Check:   "true",
		Shell:   "/nonexistent/shell",
	}}
	_, err := New().Evaluate(context.Background(), step)
	require.ErrorIs(t, err, &handler.StateError{})
}

func TestCommandHandler_MetadataAndSchema(t *testing.T) {
	t.Parallel()

	h := New()
	require.Equal(t, config.TypeCommand, h.Metadata().Type)
	require.NoError(t, h.Metadata().Validate())
	_, ok := h.Schema().(config.CommandStep)
	require.True(t, ok)
}

func TestCommandHandler_MissingConfig(t *testing.T) {
	t.Parallel()

	_, err := New().Evaluate(context.Background(), &config.Step{ID: "missing", Type: config.TypeCommand})
	require.ErrorIs(t, err, &handler.ValidationError{})

	res, err := New().Apply(context.Background(), &model.EvaluationResult{}, &config.Step{ID: "missing", Type: config.TypeCommand})
	require.Error(t, err)
	require.Nil(t, res)
}

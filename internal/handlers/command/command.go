package commandhandler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/fsutil"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/handlers/internalexec"
	"github.com/alexisbeaulieu97/provision/internal/model"
	provisionerrors "github.com/alexisbeaulieu97/provision/pkg/errors"
)

type commandHandler struct {
	stdin io.Reader
}

// Option customises the command handler.
type Option func(*commandHandler)

// WithStdin sets the operator input handed to interactive commands. The
// default is the process's standard input.
func WithStdin(r io.Reader) Option {
	return func(h *commandHandler) {
		h.stdin = r
	}
}

// New creates a new command handler instance.
func New(opts ...Option) handler.Handler {
	h := &commandHandler{stdin: os.Stdin}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ handler.Handler = (*commandHandler)(nil)

func (h *commandHandler) Metadata() handler.Metadata {
	return handler.Metadata{
		Type:        config.TypeCommand,
		Version:     "1.0.0",
		Description: "Runs a shell command, skipped when its check command succeeds.",
	}
}

func (h *commandHandler) Schema() any {
	return config.CommandStep{}
}

func (h *commandHandler) Evaluate(ctx context.Context, step *config.Step) (*model.EvaluationResult, error) {
	cfg := step.Command
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("command configuration missing"))
	}

	if strings.TrimSpace(cfg.Check) == "" {
		return &model.EvaluationResult{
			StepID:         step.ID,
			CurrentState:   model.StatusUnknown,
			RequiresAction: true,
			Message:        "no check command; command will run",
		}, nil
	}

	cmd, err := shellCommand(ctx, cfg, cfg.Check)
	if err != nil {
		return nil, handler.NewStateError(step.ID, err)
	}

	res, err := internalexec.Capture(ctx, cmd)
	if err != nil {
		var toolErr *provisionerrors.ToolError
		if errors.As(err, &toolErr) && toolErr.ExitCode > 0 {
			msg := fmt.Sprintf("check exited %d", toolErr.ExitCode)
			if out := internalexec.PrimaryOutput(res); out != "" {
				msg += ": " + out
			}
			return &model.EvaluationResult{
				StepID:         step.ID,
				CurrentState:   model.StatusMissing,
				RequiresAction: true,
				Message:        msg,
			}, nil
		}
		return nil, handler.NewStateError(step.ID, err)
	}

	return &model.EvaluationResult{
		StepID:         step.ID,
		CurrentState:   model.StatusSatisfied,
		RequiresAction: false,
		Message:        "check command succeeded",
	}, nil
}

func (h *commandHandler) Apply(ctx context.Context, eval *model.EvaluationResult, step *config.Step) (*model.StepResult, error) {
	cfg := step.Command
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("command configuration missing"))
	}

	cmd, err := shellCommand(ctx, cfg, cfg.Command)
	if err != nil {
		return nil, handler.NewExecutionError(step.ID, err)
	}
	if cfg.Interactive {
		cmd.Stdin = h.stdin
	}

	if _, err := internalexec.RunStreaming(ctx, cmd); err != nil {
		result := &model.StepResult{StepID: step.ID, Status: model.StatusFailed, Message: err.Error(), Error: err}
		return result, handler.NewExecutionError(step.ID, err)
	}

	return &model.StepResult{
		StepID:  step.ID,
		Status:  model.StatusSuccess,
		Message: "command executed",
	}, nil
}

func shellCommand(ctx context.Context, cfg *config.CommandStep, script string) (*exec.Cmd, error) {
	shell, shellArgs, err := internalexec.Shell(cfg.Shell)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, shell, append(shellArgs, script)...)
	cmd.Env = internalexec.Env(cfg.Env)
	if cfg.WorkDir != "" {
		dir, err := fsutil.Expand(cfg.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("workdir: %w", err)
		}
		cmd.Dir = dir
	}
	return cmd, nil
}

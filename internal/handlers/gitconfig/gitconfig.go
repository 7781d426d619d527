// Package gitconfighandler converges single keys of a git config file,
// either to a literal value or to operator input that matches a pattern.
package gitconfighandler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"

	format "github.com/go-git/go-git/v5/plumbing/format/config"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/fsutil"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/logger"
	"github.com/alexisbeaulieu97/provision/internal/model"
	"github.com/alexisbeaulieu97/provision/internal/prompt"
)

const defaultFile = "~/.gitconfig"

type gitConfigHandler struct {
	prompter prompt.Prompter
}

// New creates a git_config handler. p answers keys configured with a
// pattern; it may be nil when every key is a literal.
func New(p prompt.Prompter) handler.Handler {
	return &gitConfigHandler{prompter: p}
}

var _ handler.Handler = (*gitConfigHandler)(nil)

func (h *gitConfigHandler) Metadata() handler.Metadata {
	return handler.Metadata{
		Type:        config.TypeGitConfig,
		Version:     "1.0.0",
		Description: "Sets a git config key to a literal or prompted value.",
	}
}

func (h *gitConfigHandler) Schema() any {
	return config.GitConfigStep{}
}

// target is the resolved form of a step, shared by Evaluate and Apply.
type target struct {
	file    string
	key     configKey
	desired string
	pattern *regexp.Regexp
}

func resolve(step *config.Step) (*target, error) {
	cfg := step.GitConfig
	if cfg == nil {
		return nil, errors.New("git_config configuration missing")
	}

	file := cfg.File
	if file == "" {
		file = defaultFile
	}
	path, err := fsutil.Expand(file)
	if err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	// A dotfiles-managed ~/.gitconfig is usually a symlink; edit its target.
	if path, err = fsutil.Resolve(path); err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}

	key, err := parseKey(cfg.Key)
	if err != nil {
		return nil, err
	}

	t := &target{file: path, key: key, desired: cfg.Value}
	if cfg.Pattern != "" {
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern: %w", err)
		}
		t.pattern = re
	} else if cfg.Path {
		expanded, err := fsutil.Expand(cfg.Value)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		t.desired = expanded
	}
	return t, nil
}

func (h *gitConfigHandler) Evaluate(ctx context.Context, step *config.Step) (*model.EvaluationResult, error) {
	t, err := resolve(step)
	if err != nil {
		return nil, handler.NewValidationError(step.ID, err)
	}

	cfg, _, err := load(t.file)
	if err != nil {
		return nil, handler.NewStateError(step.ID, err)
	}
	current, present := t.key.lookup(cfg)

	result := &model.EvaluationResult{StepID: step.ID, InternalData: t}
	switch {
	case t.pattern != nil && present && t.pattern.MatchString(current):
		result.CurrentState = model.StatusSatisfied
		result.Message = fmt.Sprintf("%s = %q matches %s", t.key, current, t.pattern)
		return result, nil
	case t.pattern == nil && present && current == t.desired:
		result.CurrentState = model.StatusSatisfied
		result.Message = fmt.Sprintf("%s already set to %q", t.key, current)
		return result, nil
	}

	result.RequiresAction = true
	if present {
		result.CurrentState = model.StatusDrifted
	} else {
		result.CurrentState = model.StatusMissing
	}

	switch {
	case t.pattern != nil && present:
		result.Message = fmt.Sprintf("%s = %q does not match %s; will prompt", t.key, current, t.pattern)
	case t.pattern != nil:
		result.Message = fmt.Sprintf("%s is unset; will prompt", t.key)
	case present:
		result.Message = fmt.Sprintf("%s is %q, want %q", t.key, current, t.desired)
		result.Diff = fmt.Sprintf("- %s = %s\n+ %s = %s", t.key, current, t.key, t.desired)
	default:
		result.Message = fmt.Sprintf("%s is unset, want %q", t.key, t.desired)
		result.Diff = fmt.Sprintf("+ %s = %s", t.key, t.desired)
	}
	return result, nil
}

func (h *gitConfigHandler) Apply(ctx context.Context, eval *model.EvaluationResult, step *config.Step) (*model.StepResult, error) {
	t, ok := eval.InternalData.(*target)
	if !ok || t == nil {
		var err error
		if t, err = resolve(step); err != nil {
			return nil, handler.NewValidationError(step.ID, err)
		}
	}

	value := t.desired
	if t.pattern != nil {
		answer, err := h.ask(ctx, step, t)
		if err != nil {
			return failed(step.ID, err)
		}
		value = answer
	}

	// Re-read so a value written by an earlier step in the same file survives.
	cfg, perm, err := load(t.file)
	if err != nil {
		return failed(step.ID, err)
	}
	t.key.set(cfg, value)

	var buf bytes.Buffer
	if err := format.NewEncoder(&buf).Encode(cfg); err != nil {
		return failed(step.ID, fmt.Errorf("encode %s: %w", t.file, err))
	}

	logger.FromContext(ctx).Audit("git_config_set", map[string]any{
		"file":  t.file,
		"key":   t.key.String(),
		"value": value,
	})
	if err := fsutil.WriteFileAtomic(t.file, buf.Bytes(), perm); err != nil {
		return failed(step.ID, fmt.Errorf("write %s: %w", t.file, err))
	}

	return &model.StepResult{
		StepID:  step.ID,
		Status:  model.StatusSuccess,
		Message: fmt.Sprintf("set %s", t.key),
	}, nil
}

func (h *gitConfigHandler) ask(ctx context.Context, step *config.Step, t *target) (string, error) {
	if h.prompter == nil {
		return "", fmt.Errorf("%s needs operator input but no prompter is available", t.key)
	}
	label := step.GitConfig.Prompt
	if label == "" {
		label = t.key.String()
	}
	return prompt.Until(ctx, h.prompter, prompt.Question{
		Label: label,
		Hint:  "must match " + t.pattern.String(),
	}, t.pattern)
}

// load decodes path. A missing file is an empty config with mode 0644.
func load(path string) (*format.Config, os.FileMode, error) {
	cfg := format.New()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, 0o644, nil
		}
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	if err := format.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", path, err)
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return cfg, perm, nil
}

func failed(stepID string, err error) (*model.StepResult, error) {
	return &model.StepResult{
		StepID:  stepID,
		Status:  model.StatusFailed,
		Message: err.Error(),
		Error:   err,
	}, handler.NewExecutionError(stepID, err)
}

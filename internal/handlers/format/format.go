// Package formathandler runs a source formatter in check or apply mode. The
// formatter must print the formatted source on stdout and leave the file
// alone; this package decides whether to show the difference or write it.
package formathandler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/fsutil"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/handlers/internalexec"
	"github.com/alexisbeaulieu97/provision/internal/logger"
	"github.com/alexisbeaulieu97/provision/internal/model"
)

const (
	modeCheck = "check"
	modeApply = "apply"
)

type formatHandler struct {
	out io.Writer
}

// New creates a format handler. Diffs found in check mode are written to
// out, or to stdout when out is nil.
func New(out io.Writer) handler.Handler {
	if out == nil {
		out = os.Stdout
	}
	return &formatHandler{out: out}
}

var _ handler.Handler = (*formatHandler)(nil)

func (h *formatHandler) Metadata() handler.Metadata {
	return handler.Metadata{
		Type:        config.TypeFormat,
		Version:     "1.0.0",
		Description: "Checks or applies a source formatter's output.",
	}
}

func (h *formatHandler) Schema() any {
	return config.FormatStep{}
}

// formatted is one file whose formatter output differs from its content.
type formatted struct {
	Path   string
	Before []byte
	After  []byte
	Perm   os.FileMode
	Diff   string
}

func (h *formatHandler) Evaluate(ctx context.Context, step *config.Step) (*model.EvaluationResult, error) {
	cfg := step.Format
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("format configuration missing"))
	}

	var (
		changed []formatted
		diffs   []string
	)
	for _, file := range cfg.Files {
		path, err := fsutil.Expand(file)
		if err != nil {
			return nil, handler.NewValidationError(step.ID, fmt.Errorf("files: %w", err))
		}
		item, err := runFormatter(ctx, cfg, path)
		if err != nil {
			return nil, handler.NewStateError(step.ID, err)
		}
		if item != nil {
			changed = append(changed, *item)
			diffs = append(diffs, item.Diff)
		}
	}

	if len(changed) == 0 {
		return &model.EvaluationResult{
			StepID:       step.ID,
			CurrentState: model.StatusSatisfied,
			Message:      fmt.Sprintf("%d file(s) already formatted", len(cfg.Files)),
		}, nil
	}

	return &model.EvaluationResult{
		StepID:         step.ID,
		CurrentState:   model.StatusDrifted,
		RequiresAction: true,
		Message:        fmt.Sprintf("%d of %d file(s) need formatting", len(changed), len(cfg.Files)),
		Diff:           strings.Join(diffs, "\n"),
		InternalData:   changed,
	}, nil
}

func (h *formatHandler) Apply(ctx context.Context, eval *model.EvaluationResult, step *config.Step) (*model.StepResult, error) {
	cfg := step.Format
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("format configuration missing"))
	}

	changed, ok := eval.InternalData.([]formatted)
	if !ok {
		fresh, err := h.Evaluate(ctx, step)
		if err != nil {
			return nil, err
		}
		eval = fresh
		changed, _ = fresh.InternalData.([]formatted)
	}
	if len(changed) == 0 {
		return &model.StepResult{StepID: step.ID, Status: model.StatusSuccess, Message: "no formatting changes"}, nil
	}

	if mode(cfg) == modeCheck {
		fmt.Fprintln(h.out, eval.Diff)
		if cfg.FailOnDiff {
			err := fmt.Errorf("%d file(s) are not formatted: %s", len(changed), paths(changed))
			return failed(step.ID, err)
		}
		return &model.StepResult{
			StepID:  step.ID,
			Status:  model.StatusSuccess,
			Message: fmt.Sprintf("%d file(s) would be reformatted", len(changed)),
		}, nil
	}

	log := logger.FromContext(ctx)
	for _, item := range changed {
		sum := sha256.Sum256(item.After)
		log.Audit("write_file", map[string]any{
			"path":   item.Path,
			"mode":   fmt.Sprintf("%04o", item.Perm),
			"bytes":  len(item.After),
			"sha256": hex.EncodeToString(sum[:]),
			"reason": "format",
		})
		if err := fsutil.WriteFileAtomic(item.Path, item.After, item.Perm); err != nil {
			return failed(step.ID, fmt.Errorf("write %s: %w", item.Path, err))
		}
	}

	return &model.StepResult{
		StepID:  step.ID,
		Status:  model.StatusSuccess,
		Message: fmt.Sprintf("reformatted %s", paths(changed)),
	}, nil
}

// runFormatter returns nil when path is already formatted.
func runFormatter(ctx context.Context, cfg *config.FormatStep, path string) (*formatted, error) {
	before, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	argv := append([]string(nil), cfg.Formatter...)
	if !cfg.Stdin {
		argv = append(argv, path)
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = filepath.Dir(path)
	if cfg.Stdin {
		cmd.Stdin = bytes.NewReader(before)
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if _, err := internalexec.Capture(ctx, cmd); err != nil {
		return nil, err
	}

	after := stdout.Bytes()
	if bytes.Equal(before, after) {
		return nil, nil
	}

	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: path,
		ToFile:   path + " (formatted)",
		Context:  3,
	})
	return &formatted{
		Path:   path,
		Before: before,
		After:  after,
		Perm:   info.Mode().Perm(),
		Diff:   strings.TrimRight(diff, "\n"),
	}, nil
}

func mode(cfg *config.FormatStep) string {
	if cfg.Mode == "" {
		return modeCheck
	}
	return cfg.Mode
}

func paths(items []formatted) string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Path)
	}
	return strings.Join(out, ", ")
}

func failed(stepID string, err error) (*model.StepResult, error) {
	return &model.StepResult{
		StepID:  stepID,
		Status:  model.StatusFailed,
		Message: err.Error(),
		Error:   err,
	}, handler.NewExecutionError(stepID, err)
}

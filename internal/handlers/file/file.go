package filehandler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/fsutil"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/logger"
	"github.com/alexisbeaulieu97/provision/internal/model"
	"github.com/alexisbeaulieu97/provision/pkg/diff"
)

const defaultMode = 0o644

type fileHandler struct{}

// New creates a new file handler instance.
func New() handler.Handler {
	return &fileHandler{}
}

var _ handler.Handler = (*fileHandler)(nil)

func (h *fileHandler) Metadata() handler.Metadata {
	return handler.Metadata{
		Type:        config.TypeFile,
		Version:     "1.0.0",
		Description: "Writes a whole file from raw text, a template, ini sections or yaml data.",
	}
}

func (h *fileHandler) Schema() any {
	return config.FileStep{}
}

type evaluationData struct {
	Path     string
	Rendered []byte
	Mode     os.FileMode
}

// Evaluate reports how the file on disk compares with the rendered content,
// but always requires action: file emission has no precondition and the last
// writer wins.
func (h *fileHandler) Evaluate(ctx context.Context, step *config.Step) (*model.EvaluationResult, error) {
	cfg := step.File
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("file configuration missing"))
	}
	if err := ctx.Err(); err != nil {
		return nil, handler.NewStateError(step.ID, err)
	}

	path, err := fsutil.Expand(cfg.Path)
	if err != nil {
		return nil, handler.NewValidationError(step.ID, fmt.Errorf("path: %w", err))
	}
	if path, err = fsutil.Resolve(path); err != nil {
		return nil, handler.NewStateError(step.ID, err)
	}
	mode, err := config.ParseMode(cfg.Mode, defaultMode)
	if err != nil {
		return nil, handler.NewValidationError(step.ID, fmt.Errorf("mode: %w", err))
	}
	rendered, err := render(cfg)
	if err != nil {
		return nil, handler.NewValidationError(step.ID, err)
	}

	data := &evaluationData{Path: path, Rendered: rendered, Mode: os.FileMode(mode)}

	existing, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &model.EvaluationResult{
			StepID:         step.ID,
			CurrentState:   model.StatusMissing,
			RequiresAction: true,
			Message:        fmt.Sprintf("%s does not exist", path),
			Diff:           diff.Unified(nil, rendered, "/dev/null", path),
			InternalData:   data,
		}, nil
	case err != nil:
		return nil, handler.NewStateError(step.ID, fmt.Errorf("read %s: %w", path, err))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, handler.NewStateError(step.ID, err)
	}

	if bytes.Equal(existing, rendered) && info.Mode().Perm() == data.Mode.Perm() {
		return &model.EvaluationResult{
			StepID:         step.ID,
			CurrentState:   model.StatusSatisfied,
			RequiresAction: true,
			Message:        fmt.Sprintf("%s is up to date; rewriting", path),
			InternalData:   data,
		}, nil
	}

	return &model.EvaluationResult{
		StepID:         step.ID,
		CurrentState:   model.StatusDrifted,
		RequiresAction: true,
		Message:        fmt.Sprintf("%s differs from desired content", path),
		Diff:           diff.Unified(existing, rendered, path, path),
		InternalData:   data,
	}, nil
}

func (h *fileHandler) Apply(ctx context.Context, eval *model.EvaluationResult, step *config.Step) (*model.StepResult, error) {
	if step.File == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("file configuration missing"))
	}

	var data *evaluationData
	if eval != nil {
		data, _ = eval.InternalData.(*evaluationData)
	}
	if data == nil {
		fresh, err := h.Evaluate(ctx, step)
		if err != nil {
			return nil, err
		}
		data = fresh.InternalData.(*evaluationData)
	}

	sum := sha256.Sum256(data.Rendered)
	logger.FromContext(ctx).Audit("write_file", map[string]any{
		"path":   data.Path,
		"mode":   fmt.Sprintf("%04o", data.Mode.Perm()),
		"bytes":  len(data.Rendered),
		"sha256": hex.EncodeToString(sum[:]),
	})

	if err := fsutil.WriteFileAtomic(data.Path, data.Rendered, data.Mode); err != nil {
		err = fmt.Errorf("write %s: %w", data.Path, err)
		return &model.StepResult{
			StepID:  step.ID,
			Status:  model.StatusFailed,
			Message: err.Error(),
			Error:   err,
		}, handler.NewExecutionError(step.ID, err)
	}

	return &model.StepResult{
		StepID:  step.ID,
		Status:  model.StatusSuccess,
		Message: fmt.Sprintf("wrote %s (%d bytes)", data.Path, len(data.Rendered)),
	}, nil
}

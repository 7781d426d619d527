package lineinfilehandler

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/fsutil"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/logger"
	"github.com/alexisbeaulieu97/provision/internal/model"
)

const defaultFileMode os.FileMode = 0o644

type lineInFileHandler struct{}

// New creates a new line_in_file handler instance.
func New() handler.Handler {
	return &lineInFileHandler{}
}

var _ handler.Handler = (*lineInFileHandler)(nil)

func (h *lineInFileHandler) Metadata() handler.Metadata {
	return handler.Metadata{
		Type:        config.TypeLineInFile,
		Version:     "1.0.0",
		Description: "Keeps a single line present in, or absent from, a text file such as a shell profile.",
	}
}

func (h *lineInFileHandler) Schema() any {
	return config.LineInFileStep{}
}

// target is the file as read during Evaluate.
type target struct {
	Path   string
	Exists bool
	Perm   os.FileMode
	Raw    []byte
	Doc    document
}

type evaluationData struct {
	Target *target
	Next   document
	Action string
}

func (h *lineInFileHandler) Evaluate(ctx context.Context, step *config.Step) (*model.EvaluationResult, error) {
	opts, err := newOptions(step.LineInFile)
	if err != nil {
		return nil, handler.NewValidationError(step.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, handler.NewStateError(step.ID, err)
	}

	t, err := readTarget(opts)
	if err != nil {
		return nil, handler.NewStateError(step.ID, fmt.Errorf("read %s: %w", opts.File, err))
	}

	next, action, err := converge(t.Doc, opts)
	if err != nil {
		return nil, handler.NewExecutionError(step.ID, err)
	}

	data := &evaluationData{Target: t, Next: next, Action: action}
	if action == "none" {
		return &model.EvaluationResult{
			StepID:         step.ID,
			CurrentState:   model.StatusSatisfied,
			RequiresAction: false,
			Message:        fmt.Sprintf("%s already in desired state", t.Path),
			InternalData:   data,
		}, nil
	}

	state := model.StatusDrifted
	if !t.Exists || action == "append" {
		state = model.StatusMissing
	}
	return &model.EvaluationResult{
		StepID:         step.ID,
		CurrentState:   state,
		RequiresAction: true,
		Message:        fmt.Sprintf("line action needed on %s: %s", t.Path, action),
		Diff:           unifiedDiff(t.Path, t.Doc, next),
		InternalData:   data,
	}, nil
}

func (h *lineInFileHandler) Apply(ctx context.Context, eval *model.EvaluationResult, step *config.Step) (*model.StepResult, error) {
	opts, err := newOptions(step.LineInFile)
	if err != nil {
		return nil, handler.NewValidationError(step.ID, err)
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

	if data.Action == "none" {
		return &model.StepResult{StepID: step.ID, Status: model.StatusSkipped, Message: "no changes needed"}, nil
	}

	log := logger.FromContext(ctx)
	t := data.Target

	if opts.Backup && t.Exists {
		dest, err := backup(t.Path, opts.BackupDir, t.Raw, t.Perm)
		if err != nil {
			return nil, handler.NewExecutionError(step.ID, fmt.Errorf("create backup: %w", err))
		}
		log.Audit("backup_file", map[string]any{"path": t.Path, "backup": dest})
	}

	encoded, err := encode(data.Next.String(), opts.Encoding)
	if err != nil {
		return nil, handler.NewExecutionError(step.ID, fmt.Errorf("encode content: %w", err))
	}

	log.Audit("write_file", map[string]any{
		"path":   t.Path,
		"mode":   fmt.Sprintf("%04o", t.Perm),
		"change": data.Action,
		"line":   opts.Line,
	})
	if err := fsutil.WriteFileAtomic(t.Path, encoded, t.Perm); err != nil {
		err = fmt.Errorf("write %s: %w", t.Path, err)
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
		Message: fmt.Sprintf("line action completed: %s", data.Action),
	}, nil
}

// readTarget reads the file through any symlink, so a dotfile managed as a
// link is edited in place rather than replaced.
func readTarget(opts *options) (*target, error) {
	path, err := fsutil.Expand(opts.File)
	if err != nil {
		return nil, err
	}
	if path, err = fsutil.Resolve(path); err != nil {
		return nil, err
	}
	t := &target{Path: path, Perm: defaultFileMode, Doc: document{Lines: []string{}}}

	info, err := os.Stat(t.Path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(t.Path)
	if err != nil {
		return nil, err
	}
	content, err := decode(raw, opts.Encoding)
	if err != nil {
		return nil, err
	}

	t.Exists = true
	t.Perm = info.Mode().Perm()
	t.Raw = raw
	t.Doc = parseDocument(content)
	return t, nil
}

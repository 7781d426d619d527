// Package installerhandler fetches installer scripts over HTTPS and runs them
// with a shell.
package installerhandler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/fsutil"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/handlers/internalexec"
	"github.com/alexisbeaulieu97/provision/internal/logger"
	"github.com/alexisbeaulieu97/provision/internal/model"
)

const (
	defaultShell  = "sh"
	maxScriptSize = 16 << 20
)

type installerHandler struct {
	client *http.Client
}

// Option customises the installer handler.
type Option func(*installerHandler)

// WithClient replaces the HTTP client used for downloads.
func WithClient(c *http.Client) Option {
	return func(h *installerHandler) {
		h.client = c
	}
}

// New creates a new installer handler instance.
func New(opts ...Option) handler.Handler {
	h := &installerHandler{client: &http.Client{Timeout: 5 * time.Minute}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ handler.Handler = (*installerHandler)(nil)

func (h *installerHandler) Metadata() handler.Metadata {
	return handler.Metadata{
		Type:        config.TypeInstaller,
		Version:     "1.0.0",
		Description: "Downloads an installer script over HTTPS and runs it unless the tool is present.",
	}
}

func (h *installerHandler) Schema() any {
	return config.InstallerStep{}
}

// Evaluate uses Creates and Binary as a best-effort signal of a previous
// install. Either one being present satisfies the step.
func (h *installerHandler) Evaluate(ctx context.Context, step *config.Step) (*model.EvaluationResult, error) {
	cfg := step.Installer
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("installer configuration missing"))
	}

	if cfg.Creates != "" {
		path, err := fsutil.Expand(cfg.Creates)
		if err != nil {
			return nil, handler.NewValidationError(step.ID, fmt.Errorf("creates: %w", err))
		}
		exists, err := fsutil.Exists(path)
		if err != nil {
			return nil, handler.NewStateError(step.ID, err)
		}
		if exists {
			return &model.EvaluationResult{
				StepID:       step.ID,
				CurrentState: model.StatusSatisfied,
				Message:      fmt.Sprintf("%s exists", path),
			}, nil
		}
	}

	if cfg.Binary != "" {
		if path, err := exec.LookPath(cfg.Binary); err == nil {
			return &model.EvaluationResult{
				StepID:       step.ID,
				CurrentState: model.StatusSatisfied,
				Message:      fmt.Sprintf("%s found at %s", cfg.Binary, path),
			}, nil
		}
	}

	return &model.EvaluationResult{
		StepID:         step.ID,
		CurrentState:   model.StatusMissing,
		RequiresAction: true,
		Message:        "not installed",
		Diff:           fmt.Sprintf("Would download %s and run it with %s", cfg.URL, shell(cfg)),
	}, nil
}

func (h *installerHandler) Apply(ctx context.Context, eval *model.EvaluationResult, step *config.Step) (*model.StepResult, error) {
	cfg := step.Installer
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("installer configuration missing"))
	}

	script, err := h.fetch(ctx, cfg.URL)
	if err != nil {
		return failed(step.ID, err)
	}

	tmp, err := os.CreateTemp("", "provision-installer-*.sh")
	if err != nil {
		return failed(step.ID, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(script); err != nil {
		tmp.Close()
		return failed(step.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return failed(step.ID, err)
	}

	args := make([]string, 0, len(cfg.Args)+1)
	args = append(args, tmp.Name())
	for _, arg := range cfg.Args {
		args = append(args, os.ExpandEnv(arg))
	}

	cmd := exec.CommandContext(ctx, shell(cfg), args...)
	cmd.Env = internalexec.Env(cfg.Env)
	if _, err := internalexec.RunStreaming(ctx, cmd); err != nil {
		return failed(step.ID, err)
	}

	if cfg.Creates != "" {
		if path, err := fsutil.Expand(cfg.Creates); err == nil {
			if exists, _ := fsutil.Exists(path); !exists {
				logger.FromContext(ctx).WithFields(map[string]any{"step_id": step.ID, "creates": path}).
					Warn("installer finished but did not create the expected path; the next run will reinstall")
			}
		}
	}

	return &model.StepResult{
		StepID:  step.ID,
		Status:  model.StatusSuccess,
		Message: fmt.Sprintf("installed from %s", cfg.URL),
	}, nil
}

// fetch downloads rawURL over HTTPS, refusing plain-text redirects, and
// records the digest of what it will execute.
func (h *installerHandler) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := requireHTTPS(rawURL); err != nil {
		return nil, err
	}

	client := *h.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return requireHTTPS(req.URL.String())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptSize+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	if len(body) > maxScriptSize {
		return nil, fmt.Errorf("download %s: script larger than %d bytes", rawURL, maxScriptSize)
	}

	sum := sha256.Sum256(body)
	logger.FromContext(ctx).Audit("fetch", map[string]any{
		"url":    rawURL,
		"final":  resp.Request.URL.String(),
		"bytes":  len(body),
		"sha256": hex.EncodeToString(sum[:]),
	})
	return body, nil
}

func requireHTTPS(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("refusing to fetch %s: only https is allowed", rawURL)
	}
	return nil
}

func shell(cfg *config.InstallerStep) string {
	if cfg.Shell != "" {
		return cfg.Shell
	}
	return defaultShell
}

func failed(stepID string, err error) (*model.StepResult, error) {
	return &model.StepResult{
		StepID:  stepID,
		Status:  model.StatusFailed,
		Message: err.Error(),
		Error:   err,
	}, handler.NewExecutionError(stepID, err)
}

// Package internalexec runs external tools on behalf of handlers. Every
// mutating invocation is written to the audit log with its full argument
// vector before it starts.
package internalexec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/alexisbeaulieu97/provision/internal/logger"
	provisionerrors "github.com/alexisbeaulieu97/provision/pkg/errors"
)

// nonInteractiveEnv keeps child tools from stopping to ask questions. Package
// managers and git honour these; anything else reads EOF from the null device.
var nonInteractiveEnv = []string{
	"DEBIAN_FRONTEND=noninteractive",
	"GIT_TERMINAL_PROMPT=0",
	"PIP_NO_INPUT=1",
}

// Result captures stdout/stderr emitted by a command run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunStreaming records cmd in the audit log, then runs it with stdout and
// stderr passed through to the parent process while collecting the output
// for later inspection. A nil cmd.Stdin means the child reads the null
// device and gets the non-interactive environment; callers that want the
// operator's terminal set cmd.Stdin themselves.
//
// A non-zero exit or a failure to start is returned as *errors.ToolError.
func RunStreaming(ctx context.Context, cmd *exec.Cmd) (Result, error) {
	log := logger.FromContext(ctx)

	interactive := cmd.Stdin != nil
	if !interactive {
		applyNonInteractive(cmd)
	}

	log.Audit("exec", map[string]any{
		"argv":        cmd.Args,
		"dir":         cmd.Dir,
		"interactive": interactive,
	})

	var stdoutBuf, stderrBuf bytes.Buffer
	switch {
	case interactive && cmd.Stdout == nil && cmd.Stderr == nil:
		// Full-screen programs need the real terminal on every stream.
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	default:
		if cmd.Stdout != nil {
			cmd.Stdout = io.MultiWriter(cmd.Stdout, &stdoutBuf)
		} else {
			cmd.Stdout = io.MultiWriter(os.Stdout, &stdoutBuf)
		}
		if cmd.Stderr != nil {
			cmd.Stderr = io.MultiWriter(cmd.Stderr, &stderrBuf)
		} else {
			cmd.Stderr = io.MultiWriter(os.Stderr, &stderrBuf)
		}
	}

	err := cmd.Run()
	res := Result{
		Stdout:   strings.TrimSpace(stdoutBuf.String()),
		Stderr:   strings.TrimSpace(stderrBuf.String()),
		ExitCode: exitCode(cmd, err),
	}
	if err != nil {
		return res, toolError(ctx, cmd, res, err)
	}

	log.WithFields(map[string]any{"argv": cmd.Args}).Debug("command finished")
	return res, nil
}

// Capture runs a read-only probe such as `dpkg-query -W` and returns its
// output without echoing it. Probes are logged at debug level only; they
// never appear in the audit trail.
func Capture(ctx context.Context, cmd *exec.Cmd) (Result, error) {
	applyNonInteractive(cmd)
	logger.FromContext(ctx).WithFields(map[string]any{"argv": cmd.Args}).Debug("probe")

	var stdoutBuf, stderrBuf bytes.Buffer
	if cmd.Stdout == nil {
		cmd.Stdout = &stdoutBuf
	}
	if cmd.Stderr == nil {
		cmd.Stderr = &stderrBuf
	}

	err := cmd.Run()
	res := Result{
		Stdout:   strings.TrimSpace(stdoutBuf.String()),
		Stderr:   strings.TrimSpace(stderrBuf.String()),
		ExitCode: exitCode(cmd, err),
	}
	if err != nil {
		return res, toolError(ctx, cmd, res, err)
	}
	return res, nil
}

// PrimaryOutput returns stderr if present, otherwise stdout.
func PrimaryOutput(res Result) string {
	if res.Stderr != "" {
		return res.Stderr
	}
	return res.Stdout
}

// IsNotFound reports whether err means the tool could not be located.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}

func applyNonInteractive(cmd *exec.Cmd) {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, nonInteractiveEnv...)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

func toolError(ctx context.Context, cmd *exec.Cmd, res Result, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Join(err, ctxErr)
	}
	tool := cmd.Path
	var args []string
	if len(cmd.Args) > 0 {
		tool = cmd.Args[0]
		args = cmd.Args[1:]
	}
	return provisionerrors.NewToolError(tool, args, res.ExitCode, PrimaryOutput(res), err)
}

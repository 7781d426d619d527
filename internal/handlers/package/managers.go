package packagehandler

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alexisbeaulieu97/provision/internal/fsutil"
	"github.com/alexisbeaulieu97/provision/internal/handlers/internalexec"
	provisionerrors "github.com/alexisbeaulieu97/provision/pkg/errors"
)

// manager is one package manager backend.
type manager interface {
	Name() string
	Installed(ctx context.Context, name string) (bool, error)
	Update(ctx context.Context) error
	Install(ctx context.Context, packages []string) error
}

// notInstalled reports whether err is the query tool's "no such package"
// answer rather than a failure to ask.
func notInstalled(err error) bool {
	var toolErr *provisionerrors.ToolError
	return errors.As(err, &toolErr) && toolErr.ExitCode > 0
}

type apt struct {
	sudo bool
}

func (a *apt) Name() string { return "apt" }

func (a *apt) Installed(ctx context.Context, name string) (bool, error) {
	res, err := internalexec.Capture(ctx, exec.CommandContext(ctx, "dpkg-query", "-W", "-f=${Status}", name))
	if err != nil {
		if notInstalled(err) {
			return false, nil
		}
		return false, err
	}
	// Removed-but-not-purged packages are still listed, e.g. "deinstall ok config-files".
	return strings.HasSuffix(strings.TrimSpace(res.Stdout), " ok installed"), nil
}

func (a *apt) Update(ctx context.Context) error {
	_, err := internalexec.RunStreaming(ctx, a.command(ctx, "update"))
	return err
}

func (a *apt) Install(ctx context.Context, packages []string) error {
	args := append([]string{"install", "-y"}, packages...)
	_, err := internalexec.RunStreaming(ctx, a.command(ctx, args...))
	return err
}

func (a *apt) command(ctx context.Context, args ...string) *exec.Cmd {
	if a.sudo {
		// -E keeps DEBIAN_FRONTEND across the privilege switch.
		return exec.CommandContext(ctx, "sudo", append([]string{"-E", "apt-get"}, args...)...)
	}
	return exec.CommandContext(ctx, "apt-get", args...)
}

type pip struct {
	argv []string
}

// newPip parses the pip invocation, e.g. "~/.pyenv/shims/pip" or
// "python3 -m pip". The first word may start with ~.
func newPip(raw string) (*pip, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return &pip{argv: []string{"python3", "-m", "pip"}}, nil
	}
	if strings.HasPrefix(fields[0], "~") {
		expanded, err := fsutil.Expand(fields[0])
		if err != nil {
			return nil, fmt.Errorf("pip executable: %w", err)
		}
		fields[0] = expanded
	}
	return &pip{argv: fields}, nil
}

func (p *pip) Name() string { return "pip" }

func (p *pip) Installed(ctx context.Context, name string) (bool, error) {
	_, err := internalexec.Capture(ctx, p.command(ctx, "show", "--quiet", name))
	if err != nil {
		if notInstalled(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *pip) Update(context.Context) error { return nil }

func (p *pip) Install(ctx context.Context, packages []string) error {
	args := append([]string{"install", "--disable-pip-version-check"}, packages...)
	_, err := internalexec.RunStreaming(ctx, p.command(ctx, args...))
	return err
}

func (p *pip) command(ctx context.Context, args ...string) *exec.Cmd {
	argv := append(append([]string{}, p.argv[1:]...), args...)
	return exec.CommandContext(ctx, p.argv[0], argv...)
}

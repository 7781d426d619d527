package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/provision/internal/prompt"
)

type harness struct {
	home   string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// newHarness points HOME at a temporary directory. Tests using it cannot run
// in parallel.
func newHarness(t *testing.T) *harness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return &harness{home: home, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
}

func (h *harness) path(parts ...string) string {
	return filepath.Join(append([]string{h.home}, parts...)...)
}

func (h *harness) writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := h.path("provision.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

// run executes the CLI with input feeding any prompts.
func (h *harness) run(t *testing.T, input string, args ...string) error {
	t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	app := &appContext{
		stdout:   h.stdout,
		stderr:   h.stderr,
		prompter: prompt.NewLine(strings.NewReader(input), io.Discard),
	}
	root := newRootCmd(app)
	root.SetOut(h.stdout)
	root.SetErr(h.stderr)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func (h *harness) read(t *testing.T, parts ...string) string {
	t.Helper()
	data, err := os.ReadFile(h.path(parts...))
	require.NoError(t, err)
	return string(data)
}

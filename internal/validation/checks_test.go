package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckCommandExists(t *testing.T) {
	t.Parallel()

	path, err := CheckCommandExists("sh")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(path))

	_, err = CheckCommandExists("command-that-should-not-exist-12345")
	require.ErrorContains(t, err, "not found on PATH")

	_, err = CheckCommandExists("")
	require.Error(t, err)
}

func TestCheckFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "exists.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	_, err := CheckFileExists(file)
	require.NoError(t, err)
	_, err = CheckFileExists(dir)
	require.NoError(t, err, "directories count as existing")
	_, err = CheckFileExists(filepath.Join(dir, "missing.txt"))
	require.ErrorContains(t, err, "does not exist")
}

func TestCheckFileExistsExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "id_ed25519.pub"), []byte("ssh-ed25519 AAAA"), 0o644))

	path, err := CheckFileExists("~/.ssh/id_ed25519.pub")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".ssh", "id_ed25519.pub"), path)
}

func TestCheckPathContains(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, ".bashrc")
	require.NoError(t, os.WriteFile(file, []byte("# ~/.bashrc\nexport PYENV_ROOT=\"$HOME/.pyenv\"\neval \"$(pyenv init - bash)\"\n"), 0o644))

	_, err := CheckPathContains(file, "pyenv init")
	require.NoError(t, err)
	_, err = CheckPathContains(file, `^export PYENV_ROOT=`)
	require.Error(t, err, "patterns are not multiline by default")
	_, err = CheckPathContains(file, `(?m)^export PYENV_ROOT=`)
	require.NoError(t, err)
	_, err = CheckPathContains(file, "rbenv")
	require.ErrorContains(t, err, "not found in")
	_, err = CheckPathContains(file, "([")
	require.ErrorContains(t, err, "invalid pattern")
	_, err = CheckPathContains(filepath.Join(dir, "absent"), "x")
	require.ErrorIs(t, err, os.ErrNotExist)
}

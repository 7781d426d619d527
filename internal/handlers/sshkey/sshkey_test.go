package sshkeyhandler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/model"
)

func newStep(cfg *config.SSHKeyStep) *config.Step {
	return &config.Step{ID: "ssh_key", Type: config.TypeSSHKey, SSHKey: cfg}
}

func TestSSHKey_GeneratesPairInFreshDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), ".ssh")
	path := filepath.Join(dir, "id_ed25519")
	step := newStep(&config.SSHKeyStep{Path: path, Comment: "dev@example.com"})
	h := New()

	eval, err := h.Evaluate(context.Background(), step)
	require.NoError(t, err)
	require.Equal(t, model.StatusMissing, eval.CurrentState)
	require.True(t, eval.RequiresAction)

	res, err := h.Apply(context.Background(), eval, step)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, res.Status)

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	privInfo, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), privInfo.Mode().Perm())

	pubInfo, err := os.Stat(path + ".pub")
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), pubInfo.Mode().Perm())

	privBytes, err := os.ReadFile(path)
	require.NoError(t, err)
	signer, err := ssh.ParsePrivateKey(privBytes)
	require.NoError(t, err)
	require.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())

	pubBytes, err := os.ReadFile(path + ".pub")
	require.NoError(t, err)
	pub, comment, _, _, err := ssh.ParseAuthorizedKey(pubBytes)
	require.NoError(t, err)
	require.Equal(t, "dev@example.com", comment)
	require.Equal(t, signer.PublicKey().Marshal(), pub.Marshal())
}

func TestSSHKey_ExistingKeyIsNeverTouched(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, []byte("existing key"), 0o600))
	step := newStep(&config.SSHKeyStep{Path: path})

	eval, err := New().Evaluate(context.Background(), step)
	require.NoError(t, err)
	require.Equal(t, model.StatusSatisfied, eval.CurrentState)
	require.False(t, eval.RequiresAction)
	require.Contains(t, eval.Message, "public key missing")

	// Even a forced Apply refuses to overwrite the private key.
	_, err = New().Apply(context.Background(), eval, step)
	require.ErrorIs(t, err, &handler.ExecutionError{})
	require.ErrorIs(t, err, os.ErrExist)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "existing key", string(data))
}

func TestSSHKey_RSA(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "id_rsa")
	step := newStep(&config.SSHKeyStep{Path: path, KeyType: "rsa", Bits: 2048, Comment: "ci"})

	_, err := New().Apply(context.Background(), nil, step)
	require.NoError(t, err)

	pubBytes, err := os.ReadFile(path + ".pub")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(pubBytes), "ssh-rsa "))
	require.True(t, strings.HasSuffix(string(pubBytes), " ci\n"))
}

func TestSSHKey_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New().Evaluate(context.Background(), &config.Step{ID: "k", Type: config.TypeSSHKey})
	require.ErrorIs(t, err, &handler.ValidationError{})

	_, _, err = generate("dsa", 0, "")
	require.Error(t, err)
}

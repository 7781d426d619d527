package gitconfighandler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	format "github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/logger"
	"github.com/alexisbeaulieu97/provision/internal/model"
	"github.com/alexisbeaulieu97/provision/internal/prompt"
)

const identity = `[user]
	name = Ada Lovelace
	email = ada@example.com
[core]
	editor = vim
`

const emailPattern = `^[A-Za-z0-9._%+-]+@(?:[A-Za-z0-9-]+\.)*example\.com$`

type scripted struct {
	answers []string
	asked   int
}

func (s *scripted) Ask(_ context.Context, _ prompt.Question) (string, error) {
	s.asked++
	if len(s.answers) == 0 {
		return "", prompt.ErrNoInput
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

func newStep(id string, cfg *config.GitConfigStep) *config.Step {
	return &config.Step{ID: id, Type: config.TypeGitConfig, Enabled: true, GitConfig: cfg}
}

func auditContext(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	log, err := logger.New(logger.Options{Level: "error", Writer: buf})
	require.NoError(t, err)
	return logger.WithContext(context.Background(), log), buf
}

func run(t *testing.T, ctx context.Context, h handler.Handler, step *config.Step) (*model.EvaluationResult, *model.StepResult, error) {
	t.Helper()
	eval, err := h.Evaluate(ctx, step)
	require.NoError(t, err)
	if !eval.RequiresAction {
		return eval, nil, nil
	}
	res, err := h.Apply(ctx, eval, step)
	return eval, res, err
}

func readConfig(t *testing.T, path string) *format.Config {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg := format.New()
	require.NoError(t, format.NewDecoder(bytes.NewReader(data)).Decode(cfg))
	return cfg
}

func TestGitConfig_CorrectIdentityIsNoOp(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gitconfig")
	require.NoError(t, os.WriteFile(path, []byte(identity), 0o600))
	before, err := os.Stat(path)
	require.NoError(t, err)

	ctx, audit := auditContext(t)
	p := &scripted{}
	h := New(p)

	steps := []*config.Step{
		newStep("git_user_name", &config.GitConfigStep{Key: "user.name", Pattern: `^[^\s].*[^\s]$`, File: path}),
		newStep("git_user_email", &config.GitConfigStep{Key: "user.email", Pattern: emailPattern, File: path}),
		newStep("git_editor", &config.GitConfigStep{Key: "core.editor", Value: "vim", File: path}),
	}
	for _, step := range steps {
		eval, res, err := run(t, ctx, h, step)
		require.NoError(t, err)
		require.Nil(t, res)
		require.Equal(t, model.StatusSatisfied, eval.CurrentState)
	}

	require.Zero(t, p.asked)
	require.NotContains(t, audit.String(), "git_config_set")

	after, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, before.ModTime(), after.ModTime())
}

func TestGitConfig_LiteralDriftIsRewritten(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gitconfig")
	require.NoError(t, os.WriteFile(path, []byte(identity+"[init]\n\tdefaultBranch = master\n"), 0o600))

	ctx, audit := auditContext(t)
	step := newStep("git_default_branch", &config.GitConfigStep{Key: "init.defaultBranch", Value: "main", File: path})

	eval, res, err := run(t, ctx, New(nil), step)
	require.NoError(t, err)
	require.Equal(t, model.StatusDrifted, eval.CurrentState)
	require.Contains(t, eval.Diff, "- init.defaultBranch = master")
	require.Contains(t, eval.Diff, "+ init.defaultBranch = main")
	require.Equal(t, model.StatusSuccess, res.Status)

	cfg := readConfig(t, path)
	require.Equal(t, "main", cfg.Section("init").Option("defaultBranch"))
	require.Equal(t, "Ada Lovelace", cfg.Section("user").Option("name"))
	require.Equal(t, "vim", cfg.Section("core").Option("editor"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.Equal(t, 1, strings.Count(audit.String(), `"action":"git_config_set"`))
	require.Contains(t, audit.String(), `"value":"main"`)

	// Second pass converges to a no-op.
	eval, res, err = run(t, ctx, New(nil), step)
	require.NoError(t, err)
	require.Nil(t, res)
	require.Equal(t, model.StatusSatisfied, eval.CurrentState)
}

func TestGitConfig_PromptedValueCommittedOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gitconfig")
	ctx, audit := auditContext(t)
	p := &scripted{answers: []string{"ada@gmail.com", "ada@example.org", "ada@example.com", "late@example.com"}}
	step := newStep("git_user_email", &config.GitConfigStep{
		Key:     "user.email",
		Pattern: emailPattern,
		Prompt:  "Work email",
		File:    path,
	})

	eval, res, err := run(t, ctx, New(p), step)
	require.NoError(t, err)
	require.Equal(t, model.StatusMissing, eval.CurrentState)
	require.Equal(t, model.StatusSuccess, res.Status)
	require.Equal(t, 3, p.asked)

	cfg := readConfig(t, path)
	require.Equal(t, "ada@example.com", cfg.Section("user").Option("email"))
	require.Equal(t, 1, strings.Count(audit.String(), `"action":"git_config_set"`))
	require.NotContains(t, audit.String(), "ada@gmail.com")
}

func TestGitConfig_PromptedValueRejectsNonMatchingCurrent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gitconfig")
	require.NoError(t, os.WriteFile(path, []byte("[user]\n\temail = ada@gmail.com\n"), 0o644))

	p := &scripted{answers: []string{"ada@example.com"}}
	step := newStep("git_user_email", &config.GitConfigStep{Key: "user.email", Pattern: emailPattern, File: path})

	eval, res, err := run(t, context.Background(), New(p), step)
	require.NoError(t, err)
	require.Equal(t, model.StatusDrifted, eval.CurrentState)
	require.Contains(t, eval.Message, "does not match")
	require.Equal(t, model.StatusSuccess, res.Status)
	require.Equal(t, "ada@example.com", readConfig(t, path).Section("user").Option("email"))
}

func TestGitConfig_PromptEndsWithoutInput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gitconfig")
	step := newStep("git_user_email", &config.GitConfigStep{Key: "user.email", Pattern: emailPattern, File: path})

	_, res, err := run(t, context.Background(), New(&scripted{answers: []string{"nope"}}), step)
	require.ErrorIs(t, err, &handler.ExecutionError{})
	require.ErrorIs(t, err, prompt.ErrNoInput)
	require.Equal(t, model.StatusFailed, res.Status)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "nothing is written when no value was accepted")
}

func TestGitConfig_PromptWithoutPrompter(t *testing.T) {
	t.Parallel()

	step := newStep("git_user_name", &config.GitConfigStep{Key: "user.name", Pattern: ".+", File: filepath.Join(t.TempDir(), "gitconfig")})
	_, _, err := run(t, context.Background(), New(nil), step)
	require.ErrorIs(t, err, &handler.ExecutionError{})
	require.Contains(t, err.Error(), "no prompter")
}

func TestGitConfig_PathValueExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	step := newStep("git_signing_key", &config.GitConfigStep{
		Key:   "user.signingkey",
		Value: "~/.ssh/id_ed25519.pub",
		Path:  true,
	})

	eval, res, err := run(t, context.Background(), New(nil), step)
	require.NoError(t, err)
	require.Equal(t, model.StatusMissing, eval.CurrentState)
	require.Equal(t, model.StatusSuccess, res.Status)

	cfg := readConfig(t, filepath.Join(home, ".gitconfig"))
	require.Equal(t, filepath.Join(home, ".ssh", "id_ed25519.pub"), cfg.Section("user").Option("signingkey"))
}

func TestGitConfig_SubsectionKey(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gitconfig")
	step := newStep("insteadof", &config.GitConfigStep{
		Key:   "url.git@github.com:.insteadOf",
		Value: "https://github.com/",
		File:  path,
	})

	_, res, err := run(t, context.Background(), New(nil), step)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, res.Status)

	cfg := readConfig(t, path)
	require.Equal(t, "https://github.com/", cfg.Section("url").Subsection("git@github.com:").Option("insteadOf"))
}

func TestGitConfig_SymlinkedFileEditsTarget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	realPath := filepath.Join(dir, "dotfiles", "gitconfig")
	require.NoError(t, os.MkdirAll(filepath.Dir(realPath), 0o755))
	require.NoError(t, os.WriteFile(realPath, []byte("[core]\n\teditor = vim\n"), 0o644))
	link := filepath.Join(dir, ".gitconfig")
	require.NoError(t, os.Symlink(filepath.Join("dotfiles", "gitconfig"), link))

	ctx, buf := auditContext(t)
	step := newStep("git_default_branch", &config.GitConfigStep{Key: "init.defaultBranch", Value: "main", File: link})
	_, res, err := run(t, ctx, New(nil), step)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, res.Status)

	info, err := os.Lstat(link)
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&os.ModeSymlink, "link must survive the write")

	cfg := readConfig(t, realPath)
	require.Equal(t, "main", cfg.Section("init").Option("defaultBranch"))
	require.Equal(t, "vim", cfg.Section("core").Option("editor"))
	require.Contains(t, buf.String(), realPath)

	eval, _, err := run(t, ctx, New(nil), step)
	require.NoError(t, err)
	require.Equal(t, model.StatusSatisfied, eval.CurrentState)
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	key, err := parseKey("user.email")
	require.NoError(t, err)
	require.Equal(t, configKey{Section: "user", Name: "email"}, key)
	require.Equal(t, "user.email", key.String())

	key, err = parseKey("url.https://example.com/.insteadOf")
	require.NoError(t, err)
	require.Equal(t, configKey{Section: "url", Subsection: "https://example.com/", Name: "insteadOf"}, key)

	for _, bad := range []string{"nodot", ".email", "user."} {
		_, err := parseKey(bad)
		require.Error(t, err, bad)
	}
}

func TestGitConfig_Metadata(t *testing.T) {
	t.Parallel()

	h := New(nil)
	require.Equal(t, config.TypeGitConfig, h.Metadata().Type)
	require.NoError(t, h.Metadata().Validate())
	require.IsType(t, config.GitConfigStep{}, h.Schema())
}

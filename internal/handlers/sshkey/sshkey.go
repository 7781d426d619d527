package sshkeyhandler

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/fsutil"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/logger"
	"github.com/alexisbeaulieu97/provision/internal/model"
)

const defaultRSABits = 4096

type sshKeyHandler struct{}

// New creates a new ssh_key handler instance.
func New() handler.Handler {
	return &sshKeyHandler{}
}

var _ handler.Handler = (*sshKeyHandler)(nil)

func (h *sshKeyHandler) Metadata() handler.Metadata {
	return handler.Metadata{
		Type:        config.TypeSSHKey,
		Version:     "1.0.0",
		Description: "Generates an SSH key pair unless the private key already exists.",
	}
}

func (h *sshKeyHandler) Schema() any {
	return config.SSHKeyStep{}
}

// Evaluate treats an existing private key as satisfied. A missing .pub next
// to it is reported but not repaired; the private key is never touched.
func (h *sshKeyHandler) Evaluate(ctx context.Context, step *config.Step) (*model.EvaluationResult, error) {
	cfg := step.SSHKey
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("ssh_key configuration missing"))
	}
	path, err := fsutil.Expand(cfg.Path)
	if err != nil {
		return nil, handler.NewValidationError(step.ID, fmt.Errorf("path: %w", err))
	}

	exists, err := fsutil.Exists(path)
	if err != nil {
		return nil, handler.NewStateError(step.ID, err)
	}
	if !exists {
		return &model.EvaluationResult{
			StepID:         step.ID,
			CurrentState:   model.StatusMissing,
			RequiresAction: true,
			Message:        fmt.Sprintf("no key at %s", path),
			Diff:           fmt.Sprintf("Would generate %s key: %s, %s.pub", keyType(cfg), path, path),
			InternalData:   path,
		}, nil
	}

	msg := fmt.Sprintf("key exists at %s", path)
	if pubExists, _ := fsutil.Exists(path + ".pub"); !pubExists {
		msg += " (public key missing; regenerate it with ssh-keygen -y)"
	}
	return &model.EvaluationResult{
		StepID:         step.ID,
		CurrentState:   model.StatusSatisfied,
		RequiresAction: false,
		Message:        msg,
		InternalData:   path,
	}, nil
}

func (h *sshKeyHandler) Apply(ctx context.Context, eval *model.EvaluationResult, step *config.Step) (*model.StepResult, error) {
	cfg := step.SSHKey
	if cfg == nil {
		return nil, handler.NewValidationError(step.ID, errors.New("ssh_key configuration missing"))
	}
	path, err := fsutil.Expand(cfg.Path)
	if err != nil {
		return nil, handler.NewValidationError(step.ID, fmt.Errorf("path: %w", err))
	}

	comment := cfg.Comment
	if comment == "" {
		comment = defaultComment()
	}

	private, public, err := generate(keyType(cfg), cfg.Bits, comment)
	if err != nil {
		return failed(step.ID, fmt.Errorf("generate key: %w", err))
	}

	log := logger.FromContext(ctx)
	log.Audit("generate_ssh_key", map[string]any{
		"path":        path,
		"type":        keyType(cfg),
		"fingerprint": ssh.FingerprintSHA256(public),
	})

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return failed(step.ID, fmt.Errorf("create key directory: %w", err))
	}
	if err := writeExclusive(path, private, 0o600); err != nil {
		return failed(step.ID, fmt.Errorf("write private key: %w", err))
	}

	authorized := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(public)))
	if comment != "" {
		authorized += " " + comment
	}
	if err := fsutil.WriteFileAtomic(path+".pub", []byte(authorized+"\n"), 0o644); err != nil {
		return failed(step.ID, fmt.Errorf("write public key: %w", err))
	}

	return &model.StepResult{
		StepID:  step.ID,
		Status:  model.StatusSuccess,
		Message: fmt.Sprintf("generated %s key %s", keyType(cfg), ssh.FingerprintSHA256(public)),
	}, nil
}

func keyType(cfg *config.SSHKeyStep) string {
	if cfg.KeyType == "" {
		return "ed25519"
	}
	return cfg.KeyType
}

// generate returns the OpenSSH PEM private key and the public key.
func generate(kind string, bits int, comment string) ([]byte, ssh.PublicKey, error) {
	var (
		private crypto.PrivateKey
		public  crypto.PublicKey
	)
	switch kind {
	case "ed25519":
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		private, public = priv, pub
	case "rsa":
		if bits == 0 {
			bits = defaultRSABits
		}
		priv, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, nil, err
		}
		private, public = priv, &priv.PublicKey
	default:
		return nil, nil, fmt.Errorf("unsupported key type %q", kind)
	}

	block, err := ssh.MarshalPrivateKey(private, comment)
	if err != nil {
		return nil, nil, err
	}
	sshPub, err := ssh.NewPublicKey(public)
	if err != nil {
		return nil, nil, err
	}
	return pem.EncodeToMemory(block), sshPub, nil
}

// writeExclusive refuses to replace an existing file.
func writeExclusive(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func defaultComment() string {
	name := ""
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	host, _ := os.Hostname()
	switch {
	case name != "" && host != "":
		return name + "@" + host
	case name != "":
		return name
	}
	return host
}

func failed(stepID string, err error) (*model.StepResult, error) {
	return &model.StepResult{
		StepID:  stepID,
		Status:  model.StatusFailed,
		Message: err.Error(),
		Error:   err,
	}, handler.NewExecutionError(stepID, err)
}

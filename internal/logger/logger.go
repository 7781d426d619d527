package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options describes logger configuration supplied at creation time.
type Options struct {
	Level         string
	HumanReadable bool
	Writer        io.Writer
	// AuditFile, when set, receives every record as JSON lines. The file is
	// opened append-only and never truncated.
	AuditFile string
}

// Logger wraps zerolog to provide a simplified API for the application.
type Logger struct {
	base  zerolog.Logger
	audit *os.File
}

// New creates a configured Logger instance based on Options.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	var output io.Writer = writer
	if opts.HumanReadable {
		console := zerolog.NewConsoleWriter()
		console.Out = writer
		console.TimeFormat = time.RFC3339
		output = console
	}

	var auditFile *os.File
	if opts.AuditFile != "" {
		f, err := openAuditFile(opts.AuditFile)
		if err != nil {
			return nil, err
		}
		auditFile = f
		output = zerolog.MultiLevelWriter(output, f)
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &Logger{base: logger, audit: auditFile}, nil
}

func openAuditFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return f, nil
}

// Close flushes and releases the audit file, if any.
func (l *Logger) Close() error {
	if l == nil || l.audit == nil {
		return nil
	}
	if err := l.audit.Sync(); err != nil {
		l.audit.Close()
		return err
	}
	return l.audit.Close()
}

// WithFields returns a derived logger that always writes the supplied fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	if l == nil {
		return nil
	}

	builder := l.base.With()
	for key, value := range fields {
		builder = builder.Interface(key, value)
	}

	return &Logger{base: builder.Logger(), audit: l.audit}
}

// Info writes an informational log entry.
func (l *Logger) Info(msg string) {
	if l == nil {
		return
	}
	l.base.Info().Msg(msg)
}

// Debug writes a debug-level log entry if enabled.
func (l *Logger) Debug(msg string) {
	if l == nil {
		return
	}
	l.base.Debug().Msg(msg)
}

// Warn writes a warning level log entry.
func (l *Logger) Warn(msg string) {
	if l == nil {
		return
	}
	l.base.Warn().Msg(msg)
}

// Error writes an error log entry including the supplied error context.
func (l *Logger) Error(err error, msg string) {
	if l == nil {
		return
	}
	event := l.base.Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}

// Audit records a mutation of the workstation. Audit records bypass level
// filtering and carry audit=true plus the action name so they can be grepped
// out of a capture. Fields named like a reserved key are written with a
// "field_" prefix instead of shadowing it.
func (l *Logger) Audit(action string, fields map[string]any) {
	if l == nil {
		return
	}
	event := l.base.Log().
		Str(zerolog.LevelFieldName, zerolog.InfoLevel.String()).
		Bool(auditFieldName, true).
		Str(actionFieldName, action)
	for key, value := range fields {
		if reservedField(key) {
			key = "field_" + key
		}
		event = event.Interface(key, value)
	}
	event.Msg(action)
}

const (
	auditFieldName  = "audit"
	actionFieldName = "action"
)

func reservedField(key string) bool {
	switch key {
	case auditFieldName, actionFieldName,
		zerolog.LevelFieldName, zerolog.MessageFieldName,
		zerolog.TimestampFieldName, zerolog.ErrorFieldName:
		return true
	}
	return false
}

type ctxKey struct{}

// WithContext stores l in ctx so handlers can log without an explicit parameter.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a logger that discards
// everything when none is present.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
			return l
		}
	}
	return Nop()
}

// Nop returns a logger that discards all output.
func Nop() *Logger {
	return &Logger{base: zerolog.Nop()}
}

package lineinfilehandler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alexisbeaulieu97/provision/internal/config"
)

const (
	statePresent    = "present"
	stateAbsent     = "absent"
	onMultipleFirst = "first"
	onMultipleAll   = "all"
	onMultipleError = "error"
)

// options is the normalised form of a line_in_file step.
type options struct {
	File       string
	Line       string
	State      string
	OnMultiple string
	Backup     bool
	BackupDir  string
	Encoding   string

	pattern *regexp.Regexp
}

func newOptions(cfg *config.LineInFileStep) (*options, error) {
	if cfg == nil {
		return nil, fmt.Errorf("line_in_file configuration missing")
	}

	opts := &options{
		File:       strings.TrimSpace(cfg.File),
		Line:       cfg.Line,
		State:      strings.ToLower(strings.TrimSpace(cfg.State)),
		OnMultiple: strings.ToLower(strings.TrimSpace(cfg.OnMultipleMatches)),
		Backup:     cfg.Backup,
		BackupDir:  strings.TrimSpace(cfg.BackupDir),
		Encoding:   strings.ToLower(strings.TrimSpace(cfg.Encoding)),
	}
	if opts.State == "" {
		opts.State = statePresent
	}
	if opts.OnMultiple == "" {
		opts.OnMultiple = onMultipleFirst
	}

	switch {
	case opts.File == "":
		return nil, fmt.Errorf("file path is required")
	case opts.State != statePresent && opts.State != stateAbsent:
		return nil, fmt.Errorf("state must be 'present' or 'absent', got %q", opts.State)
	case opts.State == statePresent && strings.TrimSpace(opts.Line) == "":
		return nil, fmt.Errorf("line is required")
	case opts.State == stateAbsent && strings.TrimSpace(cfg.Match) == "":
		return nil, fmt.Errorf("match is required when state is absent")
	}

	switch opts.OnMultiple {
	case onMultipleFirst, onMultipleAll, onMultipleError:
	default:
		return nil, fmt.Errorf("on_multiple_matches must be one of: first, all, error")
	}

	if strings.TrimSpace(cfg.Match) != "" {
		pattern, err := regexp.Compile(cfg.Match)
		if err != nil {
			return nil, fmt.Errorf("invalid match pattern: %w", err)
		}
		opts.pattern = pattern
	}

	if _, err := lookupEncoding(opts.Encoding); err != nil {
		return nil, err
	}

	return opts, nil
}

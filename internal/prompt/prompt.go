// Package prompt reads operator-supplied values. It is the only place a run
// blocks on a human.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"

	"golang.org/x/term"

	"github.com/alexisbeaulieu97/provision/internal/logger"
)

var (
	// ErrNoInput means the input stream ended; no value can ever be supplied.
	ErrNoInput = errors.New("prompt: input closed before a value was entered")
	// ErrCancelled means the operator aborted the prompt.
	ErrCancelled = errors.New("prompt: cancelled by operator")
)

// Question is what the operator sees.
type Question struct {
	Label string
	Hint  string
	// Problem explains why the previous answer was rejected.
	Problem string
}

// Prompter asks one question and blocks until it is answered.
type Prompter interface {
	Ask(ctx context.Context, q Question) (string, error)
}

// Auto picks the terminal prompter when stdin is a terminal and the line
// prompter otherwise.
func Auto() Prompter {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return NewTerminal(os.Stdin, os.Stderr)
	}
	return NewLine(os.Stdin, os.Stderr)
}

// Until asks q repeatedly until the answer matches pattern and returns the
// first matching answer. A rejected answer is never returned. There is no
// attempt limit; only an input error or ctx ends the loop early.
func Until(ctx context.Context, p Prompter, q Question, pattern *regexp.Regexp) (string, error) {
	log := logger.FromContext(ctx)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		answer, err := p.Ask(ctx, q)
		if err != nil {
			return "", err
		}
		if pattern.MatchString(answer) {
			return answer, nil
		}
		log.WithFields(map[string]any{
			"label":   q.Label,
			"pattern": pattern.String(),
			"attempt": attempt,
		}).Warn("input rejected")
		q.Problem = fmt.Sprintf("%q does not match %s", answer, pattern.String())
	}
}

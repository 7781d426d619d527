package main

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/alexisbeaulieu97/provision/internal/prompt"
)

// appContext bundles the process-level collaborators commands need. Tests
// replace them to run without a terminal or network.
type appContext struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	prompter   prompt.Prompter
	httpClient *http.Client
}

func newAppContext() *appContext {
	return &appContext{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

func (a *appContext) promptSource() prompt.Prompter {
	if a.prompter == nil {
		a.prompter = prompt.Auto()
	}
	return a.prompter
}

// lazyPrompter defers choosing a prompter until a value is actually needed,
// so runs that never prompt never touch the terminal.
type lazyPrompter struct {
	app *appContext
}

func (l lazyPrompter) Ask(ctx context.Context, q prompt.Question) (string, error) {
	return l.app.promptSource().Ask(ctx, q)
}

package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/provision/internal/tui"
)

// Terminal draws an editable text input on the operator's terminal.
type Terminal struct {
	in  io.Reader
	out io.Writer
}

// NewTerminal creates a terminal prompter. Output goes to out so stdout stays
// free for the run summary.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

func (t *Terminal) Ask(ctx context.Context, q Question) (string, error) {
	m := tui.NewPromptModel(q.Label, q.Hint, q.Problem)
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(t.in),
		tea.WithOutput(t.out),
	)

	final, err := p.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("prompt: %w", err)
	}

	result, ok := final.(*tui.PromptModel)
	if !ok {
		return "", fmt.Errorf("prompt: unexpected model %T", final)
	}
	if result.Cancelled() {
		return "", ErrCancelled
	}
	return result.Value(), nil
}

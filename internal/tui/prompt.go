package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PromptModel is a single-line text input. It quits on enter (Submitted) or
// on ctrl+c/esc (Cancelled).
type PromptModel struct {
	label     string
	hint      string
	problem   string
	input     textinput.Model
	submitted bool
	cancelled bool
}

// NewPromptModel builds a focused prompt. hint is shown dimmed under the
// label; problem, when set, explains why the previous answer was rejected.
func NewPromptModel(label, hint, problem string) *PromptModel {
	ti := textinput.New()
	ti.Focus()
	ti.PromptStyle = accentStyle
	ti.TextStyle = lipgloss.NewStyle()
	ti.CharLimit = 256

	return &PromptModel{label: label, hint: hint, problem: problem, input: ti}
}

func (m *PromptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *PromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.submitted = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *PromptModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(accentStyle.Render("?") + " " + m.label + "\n")
	if m.problem != "" {
		sb.WriteString(failureStyle.Render("  "+m.problem) + "\n")
	}
	if m.hint != "" {
		sb.WriteString(mutedStyle.Render("  "+m.hint) + "\n")
	}
	sb.WriteString(m.input.View() + "\n")
	return sb.String()
}

// Value returns the text entered so far.
func (m *PromptModel) Value() string { return m.input.Value() }

// Submitted reports whether the operator pressed enter.
func (m *PromptModel) Submitted() bool { return m.submitted }

// Cancelled reports whether the operator aborted the prompt.
func (m *PromptModel) Cancelled() bool { return m.cancelled }

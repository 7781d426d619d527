package components

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/provision/internal/model"
)

func TestSummaryFromResults(t *testing.T) {
	t.Parallel()

	data := SummaryFromResults([]model.StepResult{
		{Status: model.StatusSuccess},
		{Status: model.StatusSkipped},
		{Status: model.StatusSkipped},
		{Status: model.StatusFailed},
		{Status: model.StatusNotRun},
		{Status: model.StatusNotRun},
	}, false)

	require.Equal(t, SummaryData{Total: 6, Changed: 1, Skipped: 2, Failed: 1, NotRun: 2}, data)
	require.False(t, NewSummary(data).Succeeded())
}

func TestSummaryView(t *testing.T) {
	t.Parallel()

	t.Run("renders empty summary", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "", NewSummary(SummaryData{}).View())
	})

	t.Run("renders successful completion", func(t *testing.T) {
		t.Parallel()
		view := NewSummary(SummaryData{Total: 4, Changed: 1, Skipped: 3}).View()
		require.Contains(t, view, "Steps: 4 total, 1 changed, 3 already satisfied")
		require.Contains(t, view, "Run finished successfully")
	})

	t.Run("renders failure with unattempted steps", func(t *testing.T) {
		t.Parallel()
		view := NewSummary(SummaryData{Total: 4, Changed: 1, Failed: 1, NotRun: 2}).View()
		require.Contains(t, view, "Run stopped at the first failure; 2 step(s) not run")
	})

	t.Run("renders dry run counts", func(t *testing.T) {
		t.Parallel()
		view := NewSummary(SummaryData{Total: 3, WouldUpdate: 2, Skipped: 1, DryRun: true}).View()
		require.Contains(t, view, "2 would change")
		require.Contains(t, view, "nothing was changed")
	})

	t.Run("renders validations", func(t *testing.T) {
		t.Parallel()
		view := NewSummary(SummaryData{Validations: []ValidationStatus{
			{Passed: true, Message: "git found"},
			{Passed: false, Message: "~/.ssh/id_ed25519.pub missing"},
		}}).View()
		require.Contains(t, view, "Validations:")
		require.Contains(t, view, "✓ git found")
		require.Contains(t, view, "✗ ~/.ssh/id_ed25519.pub missing")
	})
}

package components

import (
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/provision/internal/model"
)

// ValidationStatus represents a validation outcome for summary rendering.
type ValidationStatus struct {
	Passed  bool
	Message string
}

// SummaryData aggregates counts for rendering summaries.
type SummaryData struct {
	Total       int
	Changed     int
	Skipped     int
	WouldUpdate int
	Failed      int
	NotRun      int
	DryRun      bool
	Validations []ValidationStatus
}

// SummaryFromResults counts the statuses in results.
func SummaryFromResults(results []model.StepResult, dryRun bool) SummaryData {
	data := SummaryData{Total: len(results), DryRun: dryRun}
	for _, res := range results {
		switch res.Status {
		case model.StatusSuccess:
			data.Changed++
		case model.StatusSkipped:
			data.Skipped++
		case model.StatusWouldUpdate:
			data.WouldUpdate++
		case model.StatusFailed:
			data.Failed++
		case model.StatusNotRun:
			data.NotRun++
		}
	}
	return data
}

// Summary renders a textual execution summary.
type Summary struct {
	data SummaryData
}

// NewSummary creates a new Summary component.
func NewSummary(data SummaryData) Summary {
	return Summary{data: data}
}

// Succeeded reports whether no step failed.
func (s Summary) Succeeded() bool {
	return s.data.Failed == 0
}

// View renders the summary.
func (s Summary) View() string {
	var lines []string
	if s.data.Total > 0 {
		counts := fmt.Sprintf("Steps: %d total, %d changed, %d already satisfied", s.data.Total, s.data.Changed, s.data.Skipped)
		if s.data.DryRun {
			counts = fmt.Sprintf("Steps: %d total, %d would change, %d already satisfied", s.data.Total, s.data.WouldUpdate, s.data.Skipped)
		}
		lines = append(lines, counts)

		switch {
		case s.data.Failed > 0:
			lines = append(lines, fmt.Sprintf("Run stopped at the first failure; %d step(s) not run", s.data.NotRun))
		case s.data.DryRun:
			lines = append(lines, "Dry run finished; nothing was changed")
		default:
			lines = append(lines, "Run finished successfully")
		}
	}

	if len(s.data.Validations) > 0 {
		lines = append(lines, "Validations:")
		for _, v := range s.data.Validations {
			status := "✗"
			if v.Passed {
				status = "✓"
			}
			lines = append(lines, fmt.Sprintf("  %s %s", status, v.Message))
		}
	}

	return strings.Join(lines, "\n")
}

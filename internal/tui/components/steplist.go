package components

import (
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/provision/internal/model"
)

// StepEntry represents a single step for rendering.
type StepEntry struct {
	ID     string
	Result model.StepResult
}

// StepList renders the steps of a run in execution order.
type StepList struct {
	entries []StepEntry
}

// NewStepList constructs a step list component from results in run order.
func NewStepList(results []model.StepResult) StepList {
	entries := make([]StepEntry, 0, len(results))
	for _, res := range results {
		entries = append(entries, StepEntry{ID: res.StepID, Result: res})
	}
	return StepList{entries: entries}
}

// Entries returns the ordered step entries.
func (s StepList) Entries() []StepEntry {
	clone := make([]StepEntry, len(s.entries))
	copy(clone, s.entries)
	return clone
}

// View renders one line per step. icon maps a status to its marker.
func (s StepList) View(icon func(status string) string) string {
	lines := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		label := entry.ID
		if name := entry.Result.Name; name != "" && name != entry.ID {
			label = fmt.Sprintf("%s (%s)", name, entry.ID)
		}
		line := fmt.Sprintf("%s %s", icon(entry.Result.Status), label)
		if entry.Result.Status == model.StatusFailed && entry.Result.Message != "" {
			line += ": " + firstLine(entry.Result.Message)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

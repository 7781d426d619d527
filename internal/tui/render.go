// Package tui renders run output for a terminal and drives the text-input
// prompt used for operator-supplied configuration.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/provision/internal/config"
	"github.com/alexisbeaulieu97/provision/internal/handler"
	"github.com/alexisbeaulieu97/provision/internal/model"
	"github.com/alexisbeaulieu97/provision/internal/tui/components"
)

// StatusIcon returns the styled marker for a step status.
func StatusIcon(status string) string {
	switch status {
	case model.StatusSuccess:
		return successStyle.Render("✓")
	case model.StatusSkipped:
		return skippedStyle.Render("-")
	case model.StatusFailed:
		return failureStyle.Render("✗")
	case model.StatusWouldUpdate:
		return warningStyle.Render("~")
	case model.StatusNotRun:
		return pendingStyle.Render("·")
	default:
		return pendingStyle.Render("?")
	}
}

func verificationIcon(status model.VerificationStatus) string {
	switch status {
	case model.StatusSatisfied:
		return successStyle.Render("✓")
	case model.StatusMissing:
		return warningStyle.Render("+")
	case model.StatusDrifted:
		return warningStyle.Render("~")
	case model.StatusBlocked:
		return failureStyle.Render("✗")
	default:
		return pendingStyle.Render("?")
	}
}

// RenderRun renders the outcome of an apply or dry run.
func RenderRun(name string, results []model.StepResult, dryRun bool, validations []components.ValidationStatus) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(name))
	sb.WriteString("\n")

	list := components.NewStepList(results)
	if view := list.View(StatusIcon); view != "" {
		sb.WriteString(view)
		sb.WriteString("\n")
	}

	data := components.SummaryFromResults(results, dryRun)
	data.Validations = validations
	summary := components.NewSummary(data)

	style := successStyle
	if !summary.Succeeded() {
		style = failureStyle
	}
	sb.WriteString(summaryStyle.Render(style.Render(summary.View())))
	sb.WriteString("\n")
	return sb.String()
}

// RenderVerification renders a read-only convergence report.
func RenderVerification(name string, summary *model.VerificationSummary) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Verify: " + name))
	sb.WriteString("\n")

	for _, res := range summary.Results {
		label := res.StepID
		if res.Name != "" && res.Name != res.StepID {
			label = fmt.Sprintf("%s (%s)", res.Name, res.StepID)
		}
		line := fmt.Sprintf("%s %s %s", verificationIcon(res.Status), label, mutedStyle.Render(string(res.Status)))
		if res.Message != "" {
			line += mutedStyle.Render(": " + res.Message)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
		if res.Details != "" {
			for _, detail := range strings.Split(strings.TrimRight(res.Details, "\n"), "\n") {
				sb.WriteString("    " + detail + "\n")
			}
		}
	}

	counts := fmt.Sprintf("%d satisfied, %d missing, %d drifted, %d blocked, %d unknown (%s)",
		summary.Satisfied, summary.Missing, summary.Drifted, summary.Blocked, summary.Unknown,
		summary.Duration.Round(time.Millisecond))
	style := successStyle
	if !summary.AllSatisfied() {
		style = warningStyle
	}
	sb.WriteString(summaryStyle.Render(style.Render(counts)))
	sb.WriteString("\n")
	return sb.String()
}

// RenderPlan lists the steps of cfg in execution order.
func RenderPlan(cfg *config.Config) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(cfg.Name))
	sb.WriteString("\n")
	if desc := strings.TrimSpace(cfg.Description); desc != "" {
		sb.WriteString(mutedStyle.Render(desc))
		sb.WriteString("\n")
	}

	sb.WriteString(sectionStyle.Render("Steps"))
	sb.WriteString("\n")
	n := 0
	for _, step := range cfg.Steps {
		if !step.Enabled {
			sb.WriteString(fmt.Sprintf("    %s %s\n", mutedStyle.Render(step.ID), mutedStyle.Render("(disabled)")))
			continue
		}
		n++
		sb.WriteString(fmt.Sprintf("%3d. %s %s %s\n", n, accentStyle.Render(step.ID), mutedStyle.Render("["+step.Type+"]"), step.DisplayName()))
	}

	if len(cfg.Validations) > 0 {
		sb.WriteString(sectionStyle.Render("Validations"))
		sb.WriteString("\n")
		for _, val := range cfg.Validations {
			sb.WriteString("  - " + describeValidation(val) + "\n")
		}
	}
	return sb.String()
}

// RenderTypes documents the step types a run document may use.
func RenderTypes(types []handler.TypeInfo) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Step types"))
	sb.WriteString("\n")
	for _, info := range types {
		sb.WriteString(fmt.Sprintf("%s %s\n", accentStyle.Render(info.Type), mutedStyle.Render("v"+info.Version)))
		if info.Description != "" {
			sb.WriteString("  " + info.Description + "\n")
		}
		for _, field := range info.Fields {
			line := fmt.Sprintf("    %-20s %s", field.Name, mutedStyle.Render(field.Type))
			if field.Required {
				line += " " + warningStyle.Render("(required)")
			}
			sb.WriteString(line + "\n")
		}
	}
	return sb.String()
}

func describeValidation(val config.Validation) string {
	switch {
	case val.CommandExists != nil:
		return fmt.Sprintf("command %q is on PATH", val.CommandExists.Command)
	case val.FileExists != nil:
		return fmt.Sprintf("%s exists", val.FileExists.Path)
	case val.PathContains != nil:
		return fmt.Sprintf("%s contains %q", val.PathContains.File, val.PathContains.Text)
	}
	return val.Type
}

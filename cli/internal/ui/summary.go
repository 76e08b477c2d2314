// Package ui renders run reports and flow listings for the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BDNK1/flowtest/runtime"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	idStyle      = lipgloss.NewStyle().Width(28)
)

func flowBadge(s runtime.FlowStatus) string {
	switch s {
	case runtime.FlowPassed:
		return passedStyle.Render("PASS")
	case runtime.FlowFailed:
		return failedStyle.Render("FAIL")
	case runtime.FlowErrored:
		return failedStyle.Render("ERR ")
	default:
		return skippedStyle.Render("SKIP")
	}
}

func stepBadge(s runtime.StepStatus) string {
	switch s {
	case runtime.StepPassed:
		return passedStyle.Render("✓")
	case runtime.StepFailed:
		return failedStyle.Render("✗")
	case runtime.StepExpectedFailure:
		return warnStyle.Render("!")
	default:
		return skippedStyle.Render("-")
	}
}

// RenderSummary writes one line per flow, the failing steps of flows that
// did not pass, and a totals line.
func RenderSummary(w io.Writer, r *runtime.RunReport) {
	fmt.Fprintln(w, titleStyle.Render("Run "+r.ID))
	for _, f := range r.Flows {
		fmt.Fprintf(w, "%s %s %s\n", flowBadge(f.Status), idStyle.Render(f.FlowID), dimStyle.Render(f.Duration.Round(time.Millisecond).String()))
		if f.Status == runtime.FlowPassed {
			continue
		}
		if f.Reason != "" && f.Status != runtime.FlowFailed {
			fmt.Fprintf(w, "     %s\n", dimStyle.Render(f.Reason))
		}
		for _, s := range f.Steps {
			if s.Status == runtime.StepPassed || (s.Status == runtime.StepSkipped && f.Status != runtime.FlowFailed) {
				continue
			}
			line := fmt.Sprintf("     %s %s", stepBadge(s.Status), s.StepID)
			if s.Reason != "" {
				line += " " + dimStyle.Render(s.Reason)
			}
			fmt.Fprintln(w, line)
		}
	}

	sum := r.Summary
	parts := []string{
		passedStyle.Render(fmt.Sprintf("%d passed", sum.Passed)),
		failedStyle.Render(fmt.Sprintf("%d failed", sum.Failed)),
		skippedStyle.Render(fmt.Sprintf("%d skipped", sum.Skipped)),
	}
	if sum.Errored > 0 {
		parts = append(parts, failedStyle.Render(fmt.Sprintf("%d errored", sum.Errored)))
	}
	fmt.Fprintf(w, "\n%s %s in %s\n",
		titleStyle.Render(fmt.Sprintf("%d flows:", sum.Flows)),
		strings.Join(parts, ", "),
		r.Duration.Round(time.Millisecond))
}

// RenderFlows writes a listing of flows with their tags and dependency.
func RenderFlows(w io.Writer, flows []*runtime.Flow) {
	for _, f := range flows {
		line := idStyle.Render(f.ID) + fmt.Sprintf(" %2d steps", len(f.Steps))
		if len(f.Tags) > 0 {
			line += "  " + warnStyle.Render("["+strings.Join(f.Tags, ", ")+"]")
		}
		if f.DependsOn != "" {
			line += "  " + dimStyle.Render("after "+f.DependsOn)
		}
		fmt.Fprintln(w, line)
		if f.Description != "" {
			fmt.Fprintf(w, "  %s\n", dimStyle.Render(f.Description))
		}
	}
}

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"stagehand/concurrency"
	"stagehand/workspace"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// renderInitSummary formats the per-operation outcomes of an init run.
func renderInitSummary(result *workspace.InitResult) string {
	var builder strings.Builder
	builder.WriteString(headerStyle.Render(fmt.Sprintf("workspace init %s", result.RunID)))
	builder.WriteString("\n")

	ids := make([]string, 0, len(result.Results))
	for id := range result.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		opResult := result.Results[id]
		switch {
		case opResult.GracefulFailure:
			builder.WriteString(okStyle.Render("  ~ " + id))
			builder.WriteString(dimStyle.Render(" (continued after failure)"))
		case opResult.Success:
			builder.WriteString(okStyle.Render("  ✓ " + id))
		default:
			builder.WriteString(failStyle.Render("  ✗ " + id))
			builder.WriteString(dimStyle.Render(fmt.Sprintf(" %v", opResult.Err)))
		}
		builder.WriteString(dimStyle.Render(fmt.Sprintf(" [%v, %d attempt(s)]", opResult.Duration.Round(time.Millisecond), opResult.Attempts)))
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render(fmt.Sprintf("%d/%d succeeded in %v",
		result.Succeeded(), len(result.Results), result.Duration.Round(time.Millisecond))))
	return builder.String()
}

// renderBatchSummary formats batch results and their aggregate stats.
func renderBatchSummary(results []*concurrency.BatchResult) string {
	var builder strings.Builder

	for _, batch := range results {
		builder.WriteString(headerStyle.Render(batch.Name))
		builder.WriteString("\n")
		for _, opResult := range batch.Results {
			if opResult.Success() {
				builder.WriteString(okStyle.Render("  ✓ " + opResult.Name))
			} else {
				builder.WriteString(failStyle.Render("  ✗ " + opResult.Name))
				builder.WriteString(dimStyle.Render(fmt.Sprintf(" %v", opResult.Err)))
			}
			builder.WriteString(dimStyle.Render(fmt.Sprintf(" [%v]", opResult.Duration.Round(time.Millisecond))))
			builder.WriteString("\n")
		}
	}

	stats := concurrency.CalculatePerformanceStats(results)
	builder.WriteString(dimStyle.Render(fmt.Sprintf("%d operations, %.0f%% succeeded, avg %v",
		stats.TotalOperations, stats.SuccessRate, stats.AverageDuration.Round(time.Millisecond))))
	return builder.String()
}

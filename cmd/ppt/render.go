package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"github.com/gumaertl2/PPT-sub001/internal/store"
	"github.com/gumaertl2/PPT-sub001/internal/workflow"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func okMark() string   { return color.GreenString("✓") }
func warnMark() string { return color.YellowString("⚠") }
func failMark() string { return color.RedString("✗") }

// printStatus prints a status line with a colored symbol.
func printStatus(symbol, message string, attr color.Attribute) {
	fmt.Printf("%s %s\n", color.New(attr).Sprint(symbol), message)
}

// stateColor picks the color a step state is printed in.
func stateColor(s models.StepState) color.Attribute {
	switch s {
	case models.StepCommitted:
		return color.FgGreen
	case models.StepFailed:
		return color.FgRed
	case models.StepRunning, models.StepAwaitingValidation:
		return color.FgCyan
	default:
		return color.FgYellow
	}
}

// renderTable draws rows under headers; dimCol (or -1) is printed dimmed.
func renderTable(headers []string, rows [][]string, dimCol int) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == dimCol:
				return dimStyle
			default:
				return cellStyle
			}
		})
	return t.String()
}

// printReport summarizes one task execution.
func printReport(rep *workflow.Report) {
	if rep == nil {
		return
	}
	summary := fmt.Sprintf("%s: %d/%d chunks, %d created, %d updated",
		rep.Task, rep.ChunksDone, rep.ChunksTotal,
		rep.Count(store.ActionCreate), rep.Count(store.ActionUpdate))
	if len(rep.Discarded) > 0 {
		summary += fmt.Sprintf(", %d discarded", len(rep.Discarded))
	}
	if rep.InputTokens > 0 || rep.OutputTokens > 0 {
		summary += fmt.Sprintf(" (%s in / %s out tokens)", formatNumber(rep.InputTokens), formatNumber(rep.OutputTokens))
	}

	switch {
	case rep.State == models.StepCommitted:
		printStatus("✓", summary, color.FgGreen)
	case rep.Canceled:
		printStatus("■", summary+" - canceled", color.FgYellow)
	case rep.State == models.StepPending:
		printStatus("…", fmt.Sprintf("%s: not started: %v", rep.Task, rep.Err), color.FgYellow)
	default:
		printStatus("✗", fmt.Sprintf("%s: %v", summary, rep.Err), color.FgRed)
	}
	for _, w := range rep.Warnings {
		fmt.Printf("    %s %s\n", warnMark(), w.String())
	}
}

// formatNumber formats n with thousand separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// truncate shortens s to n runes for table cells.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

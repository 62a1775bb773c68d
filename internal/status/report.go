package status

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/chr1sbest/imagebatch/internal/tracker"
)

var (
	purple = lipgloss.Color("99")
	faint  = lipgloss.Color("238")

	labelStyle = lipgloss.NewStyle().Foreground(dim)
)

// Report renders the persisted state of the last run and the totals. active
// tells whether the recorded process is still alive.
func Report(rs *tracker.RunState, m *tracker.RunMetrics, active bool, now time.Time) string {
	if rs == nil {
		return mutedStyle.Render("No run recorded yet.") + "\n"
	}

	state := rs.Status
	switch {
	case rs.IsRunning && !active:
		state = errorStyle.Render("interrupted")
	case rs.Status == tracker.StatusCompleted:
		state = successStyle.Render(state)
	case rs.Status == tracker.StatusFailed:
		state = errorStyle.Render(state)
	case rs.CancelRequested:
		state = warnStyle.Render(state)
	}

	pairs := [][2]string{
		{"run", rs.RunID},
		{"status", state},
		{"item", fmt.Sprintf("%d/%d", min(rs.ItemIndex+1, rs.ItemTotal), rs.ItemTotal)},
	}
	if rs.Description != "" {
		pairs = append(pairs, [2]string{"prompt", truncate(rs.Description, 60)})
	}
	if rs.CurrentStep != "" {
		pairs = append(pairs, [2]string{"step", rs.CurrentStep})
	}
	images := strconv.Itoa(rs.ImagesSaved)
	if rs.ImagesFailed > 0 {
		images += warnStyle.Render(fmt.Sprintf(" (%d not saved)", rs.ImagesFailed))
	}
	pairs = append(pairs,
		[2]string{"images", images},
		[2]string{"started", rs.StartedAt.Format(time.DateTime)},
		[2]string{"updated", ago(now, rs.UpdatedAt)},
	)
	if rs.LastError != "" {
		pairs = append(pairs, [2]string{"last error", errorStyle.Render(truncate(rs.LastError, 80))})
	}

	var sb strings.Builder
	sb.WriteString(keyValues("  ", pairs))
	if m != nil {
		sb.WriteString("\n")
		sb.WriteString(totalsTable(m))
		sb.WriteString("\n")
	}
	return sb.String()
}

func keyValues(indent string, pairs [][2]string) string {
	maxLen := 0
	for _, p := range pairs {
		if len(p[0]) > maxLen {
			maxLen = len(p[0])
		}
	}
	var sb strings.Builder
	for _, p := range pairs {
		label := fmt.Sprintf("%-*s", maxLen+1, p[0]+":")
		sb.WriteString(indent + labelStyle.Render(label) + " " + p[1] + "\n")
	}
	return sb.String()
}

func totalsTable(m *tracker.RunMetrics) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("runs", "items", "failed", "images").
		Row(
			strconv.Itoa(m.TotalRuns),
			strconv.Itoa(m.ItemsProcessed),
			strconv.Itoa(m.ItemsFailed),
			strconv.Itoa(m.ImagesSaved),
		)
	return t.Render()
}

func ago(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t).Round(time.Second)
	if d < time.Second {
		return "just now"
	}
	return d.String() + " ago"
}

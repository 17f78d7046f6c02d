package statsui

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/zetatrack/internal/model"
	"github.com/verte-zerg/zetatrack/internal/stats"
)

var (
	navStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true)
	activeNavStyle = navStyle.
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = navStyle.
				Foreground(lipgloss.Color("#B0B0B0")).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	adviceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Italic(true)
	cardStyle       = navStyle.BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

func renderOverview(report stats.Report, window, width int) string {
	q := report.Quick
	if q.TotalGames == 0 {
		return q.Recommendation
	}
	cards := []string{
		metricCard("Recent", fmt.Sprintf("%d", q.RecentScore)),
		metricCard("Best", fmt.Sprintf("%d", q.BestScore)),
		metricCard("Average", fmt.Sprintf("%d", q.AvgScore)),
		metricCard("Games", fmt.Sprintf("%d", q.TotalGames)),
	}
	if q.HasSlowest() {
		cards = append(cards, metricCard("Slowest", fmt.Sprintf("%s %.0fms", q.Slowest, q.SlowestAvgMs)))
	}
	var summary string
	if width < 80 {
		summary = strings.Join(cards, "\n")
	} else {
		summary = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}

	var buf bytes.Buffer
	if err := stats.RenderScoreCurveWithSize(&buf, report.Sessions, window, width, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render score curve: %v", err)
	}
	return strings.TrimRight(summary+"\n"+adviceStyle.Render(q.Recommendation)+"\n\n"+buf.String(), "\n")
}

func metricCard(label, value string) string {
	return cardStyle.Render(cardTitleStyle.Render(label) + "\n" + cardValueStyle.Render(value))
}

func newTable(columns []table.Column) table.Model {
	t := table.New(table.WithColumns(columns), table.WithHeight(1))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.Padding(0, 1).PaddingLeft(0)
	styles.Selected = styles.Cell.Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	t.SetStyles(styles)
	return t
}

func operationColumns() []table.Column {
	cols := make([]table.Column, 0, len(stats.OperationHeaders))
	for _, h := range stats.OperationHeaders {
		cols = append(cols, table.Column{Title: h, Width: max(runewidth.StringWidth(h), 14)})
	}
	return cols
}

func operationRows(aggs []model.OperationAggregate) []table.Row {
	rows := make([]table.Row, 0, len(aggs))
	for _, r := range stats.OperationRows(aggs) {
		rows = append(rows, table.Row(r))
	}
	return rows
}

func sessionColumns() []table.Column {
	return []table.Column{
		{Title: "When", Width: 16},
		{Title: "Score", Width: 6},
		{Title: "Problems", Width: 8},
		{Title: "Avg (ms)", Width: 9},
		{Title: "Trend", Width: 12},
	}
}

// sessionRows lists sessions newest first with a sparkline of the preceding scores.
func sessionRows(sessions []model.SessionAggregate) []table.Row {
	scores := stats.ScoreSeries(sessions)
	rows := make([]table.Row, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		when := "-"
		if !s.Timestamp.IsZero() {
			when = s.Timestamp.Local().Format("2006-01-02 15:04")
		}
		from := max(0, i-11)
		rows = append(rows, table.Row{
			when,
			fmt.Sprintf("%d", s.Score),
			fmt.Sprintf("%d", s.Problems),
			fmt.Sprintf("%.0f", s.AvgMs),
			stats.Sparkline(scores[from : i+1]),
		})
	}
	return rows
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	if w := lipgloss.Width(line); w < width {
		return line + strings.Repeat(" ", width-w)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

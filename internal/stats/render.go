package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/verte-zerg/zetatrack/internal/model"
)

// RenderSummary prints the quick stats block.
func RenderSummary(w io.Writer, q QuickStats) error {
	if q.TotalGames == 0 {
		_, err := fmt.Fprintf(w, "No sessions found.\n%s\n\n", q.Recommendation)
		return err
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Recent score: %d", q.RecentScore),
		fmt.Sprintf("Best score: %d", q.BestScore),
		fmt.Sprintf("Average score: %d", q.AvgScore),
		fmt.Sprintf("Games: %d", q.TotalGames),
	}
	if q.HasSlowest() {
		lines = append(lines, fmt.Sprintf("Slowest operation: %s (%.0f ms)", q.Slowest, q.SlowestAvgMs))
	}
	lines = append(lines, q.Recommendation, "")
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// RenderScoreCurve plots scores and their moving average.
func RenderScoreCurve(w io.Writer, sessions []model.SessionAggregate, window int) error {
	return RenderScoreCurveWithSize(w, sessions, window, 0, defaultPlotHeight, false)
}

// RenderScoreCurveWithSize plots the score curve sized to a given total width.
func RenderScoreCurveWithSize(w io.Writer, sessions []model.SessionAggregate, window, totalWidth, height int, color bool) error {
	if len(sessions) == 0 {
		return nil
	}
	scores := ScoreSeries(sessions)
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	series := []Series{{Name: "Score", Values: scores}}
	if window > 1 && len(scores) > 1 {
		series = append(series, Series{
			Name:   fmt.Sprintf("Avg(%d)", window),
			Values: MovingAverage(scores, window),
		})
	}
	return PlotSeriesWithColor(w, "Score Curve", series, width, height, color)
}

// OperationRows formats per-operation aggregates as table rows.
func OperationRows(aggs []model.OperationAggregate) [][]string {
	total := 0
	for _, a := range aggs {
		total += a.Count
	}
	rows := make([][]string, 0, len(aggs))
	for _, a := range aggs {
		share := 0.0
		if total > 0 {
			share = float64(a.Count) / float64(total) * 100
		}
		rows = append(rows, []string{
			string(a.Operation),
			fmt.Sprintf("%d", a.Count),
			fmt.Sprintf("%.0f", a.AverageMs()),
			fmt.Sprintf("%.1f%%", share),
			fmt.Sprintf("%d", a.Placeholders),
		})
	}
	return rows
}

// OperationHeaders names the OperationRows columns.
var OperationHeaders = []string{"Operation", "Problems", "Avg Latency (ms)", "Share", "Ultra-fast"}

// RenderOperationTable prints per-operation aggregates, slowest first.
func RenderOperationTable(w io.Writer, aggs []model.OperationAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No operation stats found.")
		return err
	}
	cols := make([]column, len(OperationHeaders))
	for i, h := range OperationHeaders {
		cols[i] = column{title: h, numeric: i > 0}
	}
	lines := append([]string{"Per-Operation"}, newTextTable(cols...).lines(OperationRows(aggs))...)
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n")+"\n")
	return err
}

// RenderRecent prints the most recent sessions, newest first.
func RenderRecent(w io.Writer, sessions []model.SessionAggregate, limit int) error {
	if len(sessions) == 0 {
		return nil
	}
	var rows [][]string
	for i := len(sessions) - 1; i >= 0 && (limit <= 0 || len(rows) < limit); i-- {
		s := sessions[i]
		when := "-"
		if !s.Timestamp.IsZero() {
			when = s.Timestamp.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{when, fmt.Sprintf("%d", s.Score), fmt.Sprintf("%d", s.Problems), fmt.Sprintf("%.0f", s.AvgMs)})
	}
	table := newTextTable(
		column{title: "When"},
		column{title: "Score", numeric: true},
		column{title: "Problems", numeric: true},
		column{title: "Avg (ms)", numeric: true},
	)
	lines := append([]string{"Recent Sessions"}, table.lines(rows)...)
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n")+"\n")
	return err
}

package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/verte-zerg/zetatrack/internal/model"
)

func TestTextTableAlignsWideRunes(t *testing.T) {
	table := newTextTable(column{title: "Op"}, column{title: "Avg", numeric: true}, column{title: "Count", numeric: true})
	lines := table.lines([][]string{
		{"乘", "2100", "12"},
		{"addition", "800"},
	})
	want := []string{
		"Op        Avg Count",
		"──────── ──── ─────",
		"乘       2100    12",
		"addition  800",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestTextTableWithoutColumns(t *testing.T) {
	if lines := newTextTable().lines([][]string{{"x"}}); lines != nil {
		t.Fatalf("expected no lines, got %q", lines)
	}
}

func TestRenderOperationTable(t *testing.T) {
	var buf bytes.Buffer
	err := RenderOperationTable(&buf, []model.OperationAggregate{
		{Operation: model.OpDivision, Count: 1, LatencySumMs: 4000},
		{Operation: model.OpAddition, Count: 3, LatencySumMs: 2000, Placeholders: 1},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Per-Operation", "division", "4000", "25.0%", "addition", "1000", "75.0%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderSummaryHidesUnknownSlowest(t *testing.T) {
	var buf bytes.Buffer
	q := QuickStats{RecentScore: 5, BestScore: 9, TotalGames: 2, AvgScore: 7, Slowest: model.OpUnknown, Recommendation: "Keep practicing"}
	if err := RenderSummary(&buf, q); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), "Slowest operation") {
		t.Fatalf("expected no slowest line:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "Best score: 9") {
		t.Fatalf("expected best score:\n%s", buf.String())
	}
}

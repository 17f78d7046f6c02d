package stats

import (
	"bytes"
	"strings"
	"testing"
)

func TestPlotSeries(t *testing.T) {
	var buf bytes.Buffer
	err := PlotSeries(&buf, "Score Curve", []Series{
		{Name: "Score", Values: []float64{10, 20, 30, 20, 10}},
		{Name: "Avg(2)", Values: []float64{10, 15, 25, 25, 15}},
	}, 12, 4)
	if err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != "Score Curve" {
		t.Fatalf("expected title, got %q", lines[0])
	}
	if len(lines) != 1+4+1 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "    30") || !strings.HasPrefix(lines[4], "    10") {
		t.Fatalf("expected value axis labels, got %q and %q", lines[1], lines[4])
	}
	if !strings.Contains(lines[5], "Score") || !strings.Contains(lines[5], "Avg(2)") {
		t.Fatalf("expected legend, got %q", lines[5])
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected no color codes for a buffer")
	}
}

func TestPlotSeriesSkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotSeries(&buf, "Empty", []Series{{Name: "x"}}, 10, 4); err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestPlotWidthFor(t *testing.T) {
	if got := PlotWidthFor(80); got != 80-axisLabelWidth-3 {
		t.Fatalf("expected %d, got %d", 80-axisLabelWidth-3, got)
	}
	if got := PlotWidthFor(0); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
}

func TestResample(t *testing.T) {
	if got := resample([]float64{0, 10}, 3); got[1] != 5 {
		t.Fatalf("expected interpolation, got %v", got)
	}
	if got := resample([]float64{1, 3, 5, 7}, 2); got[0] != 2 || got[1] != 6 {
		t.Fatalf("expected averaged buckets, got %v", got)
	}
}

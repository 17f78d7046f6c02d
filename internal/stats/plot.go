package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Series represents a named data series for plotting.
type Series struct {
	Name   string
	Values []float64
}

const (
	defaultPlotHeight   = 10
	minPlotWidth        = 10
	axisLabelWidth      = 6
	axisSeparator       = " ┤ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var seriesColors = []string{"\x1b[36m", "\x1b[33m", "\x1b[35m", "\x1b[32m"}

// canvas is a grid of braille cells, each holding a 2x4 dot matrix per series.
type canvas struct {
	width, height int
	layers        [][]uint8
}

func newCanvas(width, height, layers int) *canvas {
	c := &canvas{width: width, height: height, layers: make([][]uint8, layers)}
	for i := range c.layers {
		c.layers[i] = make([]uint8, width*height)
	}
	return c
}

var dotBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func (c *canvas) set(layer, x, y int) {
	if x < 0 || y < 0 || x >= c.width*2 || y >= c.height*4 {
		return
	}
	c.layers[layer][(y/4)*c.width+x/2] |= dotBits[x%2][y%4]
}

// line draws a Bresenham segment between two dot coordinates.
func (c *canvas) line(layer, x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy
	for {
		c.set(layer, x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy && x0 != x1 {
			e += dy
			x0 += sx
		}
		if e2 <= dx && y0 != y1 {
			e += dx
			y0 += sy
		}
	}
}

// cell returns the merged dot mask at a cell and the first layer that touched it.
func (c *canvas) cell(x, y int) (uint8, int) {
	var mask uint8
	owner := -1
	for i, layer := range c.layers {
		m := layer[y*c.width+x]
		if m != 0 && owner < 0 {
			owner = i
		}
		mask |= m
	}
	return mask, owner
}

// PlotSeries renders series on a shared vertical scale as a braille line chart.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	return PlotSeriesWithColor(w, title, series, width, height, false)
}

// PlotSeriesWithColor renders a chart, coloring each series when forced or when w is a terminal.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	var nonEmpty []Series
	for _, s := range series {
		if len(s.Values) > 0 {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	width = max(width, minPlotWidth)

	var all []float64
	for _, s := range nonEmpty {
		all = append(all, s.Values...)
	}
	lo, hi := bounds(all)
	if hi-lo < 1e-9 {
		lo--
		hi++
	}

	c := newCanvas(width, height, len(nonEmpty))
	for i, s := range nonEmpty {
		points := resample(s.Values, width)
		prevX, prevY := -1, 0
		for x, v := range points {
			px, py := x*2, dotRow(v, lo, hi, height*4)
			if prevX < 0 {
				c.set(i, px, py)
			} else {
				c.line(i, prevX, prevY, px, py)
			}
			prevX, prevY = px, py
		}
	}

	color := useColor(w, forceColor)
	var b strings.Builder
	if title != "" {
		b.WriteString(title + "\n")
	}
	for y := 0; y < height; y++ {
		label := ""
		switch y {
		case 0:
			label = formatAxis(hi)
		case height - 1:
			label = formatAxis(lo)
		case height / 2:
			label = formatAxis((hi + lo) / 2)
		}
		b.WriteString(runewidth.FillLeft(label, axisLabelWidth))
		b.WriteString(axisSeparator)
		for x := 0; x < width; x++ {
			mask, owner := c.cell(x, y)
			ch := string(rune(0x2800 + int(mask)))
			if color && owner >= 0 {
				ch = seriesColors[owner%len(seriesColors)] + ch + colorReset
			}
			b.WriteString(ch)
		}
		b.WriteByte('\n')
	}
	b.WriteString(legend(nonEmpty, color))
	b.WriteString("\n\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	return max(totalWidth-axisLabelWidth-runewidth.StringWidth(axisSeparator), minPlotWidth)
}

func legend(series []Series, color bool) string {
	parts := make([]string, 0, len(series))
	for i, s := range series {
		label := "⣀ " + s.Name
		if color {
			label = seriesColors[i%len(seriesColors)] + label + colorReset
		}
		parts = append(parts, label)
	}
	return strings.Repeat(" ", axisLabelWidth+runewidth.StringWidth(axisSeparator)) + strings.Join(parts, "   ")
}

func formatAxis(v float64) string {
	if math.Abs(v-math.Round(v)) < 0.05 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

// dotRow maps v to a dot row where row 0 is the top of the chart.
func dotRow(v, lo, hi float64, rows int) int {
	if rows <= 1 {
		return 0
	}
	row := int(math.Round((1 - (v-lo)/(hi-lo)) * float64(rows-1)))
	return max(0, min(row, rows-1))
}

// resample stretches or averages values into exactly width points.
func resample(values []float64, width int) []float64 {
	out := make([]float64, width)
	n := len(values)
	switch {
	case n == 0 || width == 0:
		return nil
	case n == 1 || width == 1:
		for i := range out {
			out[i] = values[0]
		}
	case n > width:
		for i := range out {
			start := i * n / width
			end := max((i+1)*n/width, start+1)
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
	default:
		for i := range out {
			pos := float64(i) * float64(n-1) / float64(width-1)
			idx := min(int(pos), n-2)
			frac := pos - float64(idx)
			out[i] = values[idx]*(1-frac) + values[idx+1]*frac
		}
	}
	return out
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func useColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

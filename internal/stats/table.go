package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// column describes one text table column. Numeric columns are right aligned.
type column struct {
	title   string
	numeric bool
}

// textTable lays out rows under a header and a rule, sized to the display width
// of the widest cell so wide runes stay aligned.
type textTable struct {
	columns []column
	widths  []int
}

func newTextTable(columns ...column) *textTable {
	t := &textTable{columns: columns, widths: make([]int, len(columns))}
	for i, c := range columns {
		t.widths[i] = runewidth.StringWidth(c.title)
	}
	return t
}

// lines renders the header, the rule and every row. Cells beyond the declared
// columns are dropped and missing cells render empty.
func (t *textTable) lines(rows [][]string) []string {
	if len(t.columns) == 0 {
		return nil
	}
	widths := append([]int(nil), t.widths...)
	for _, row := range rows {
		for i := range widths {
			if i < len(row) {
				widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
			}
		}
	}

	titles := make([]string, len(t.columns))
	rule := make([]string, len(t.columns))
	for i, c := range t.columns {
		titles[i] = c.title
		rule[i] = strings.Repeat("─", widths[i])
	}
	out := make([]string, 0, len(rows)+2)
	out = append(out, t.join(titles, widths), strings.Join(rule, " "))
	for _, row := range rows {
		out = append(out, t.join(row, widths))
	}
	return out
}

func (t *textTable) join(cells []string, widths []int) string {
	parts := make([]string, len(t.columns))
	for i, c := range t.columns {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if c.numeric {
			parts[i] = runewidth.FillLeft(cell, widths[i])
		} else {
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
	}
	return strings.TrimRight(strings.Join(parts, " "), " ")
}

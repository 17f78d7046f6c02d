package extract

import (
	"testing"

	"github.com/verte-zerg/zetatrack/internal/model"
)

func nodes(texts ...string) []Node {
	out := make([]Node, 0, len(texts))
	for _, t := range texts {
		out = append(out, Node{Text: t, Height: 18})
	}
	return out
}

func TestProblemFirstVisibleMatchWins(t *testing.T) {
	snap := Snapshot{Nodes: []Node{
		{Text: "3 + 4 =", Height: 0},
		{Text: "12  ×   7 =", Height: 20},
		{Text: "5 - 1 =", Height: 20},
	}}
	got, ok := Problem(snap)
	if !ok {
		t.Fatalf("expected a problem")
	}
	if got != "12 × 7" {
		t.Fatalf("expected %q, got %q", "12 × 7", got)
	}
}

func TestProblemRejectsLongExpressions(t *testing.T) {
	snap := Snapshot{Nodes: nodes("123456789 + 1234567890 =")}
	if got, ok := Problem(snap); ok {
		t.Fatalf("expected no problem, got %q", got)
	}
}

func TestProblemMissing(t *testing.T) {
	if _, ok := Problem(Snapshot{Nodes: nodes("Score: 4", "Seconds left: 50")}); ok {
		t.Fatalf("expected no problem")
	}
}

func TestScoreTakesMaximum(t *testing.T) {
	snap := Snapshot{Nodes: nodes("Score: 3", "Your final score: 17", "Final score: 9", "Score: 12")}
	got, ok := Score(snap)
	if !ok {
		t.Fatalf("expected a score")
	}
	if got != 17 {
		t.Fatalf("expected 17, got %d", got)
	}
}

func TestScoreMissing(t *testing.T) {
	if _, ok := Score(Snapshot{Nodes: nodes("score 4")}); ok {
		t.Fatalf("expected no score")
	}
}

func TestScoreZeroIsPresent(t *testing.T) {
	got, ok := Score(Snapshot{Nodes: nodes("Score: 0")})
	if !ok || got != 0 {
		t.Fatalf("expected present zero score, got %d (ok=%v)", got, ok)
	}
}

func TestCountdownSelectorsFirst(t *testing.T) {
	snap := Snapshot{
		Nodes: nodes("Time: 12"),
		Selected: map[string]string{
			"span.left":   "Seconds left: 88",
			"#game .left": "nothing here",
		},
	}
	got, ok := Countdown(snap)
	if !ok || got != 88 {
		t.Fatalf("expected 88, got %d (ok=%v)", got, ok)
	}
}

func TestCountdownSelectorIgnoresOtherFormats(t *testing.T) {
	snap := Snapshot{
		Selected: map[string]string{"#game .left": "1:30"},
	}
	if got, ok := Countdown(snap); ok {
		t.Fatalf("expected no countdown, got %d", got)
	}
}

func TestCountdownFallbackPatterns(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{text: "seconds LEFT: 42", want: 42, ok: true},
		{text: "Time: 7", want: 7, ok: true},
		{text: "15 seconds", want: 15, ok: true},
		{text: "1:30", want: 90, ok: true},
		{text: "Time: 301", ok: false},
		{text: "10:00", ok: false},
		{text: "no timer", ok: false},
	}
	for _, tc := range cases {
		got, ok := Countdown(Snapshot{Nodes: nodes(tc.text)})
		if ok != tc.ok {
			t.Fatalf("%q: expected ok=%v, got %v", tc.text, tc.ok, ok)
		}
		if ok && got != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.text, tc.want, got)
		}
	}
}

func TestCountdownSkipsLongNodes(t *testing.T) {
	long := "Seconds left: 50 "
	for len(long) < 120 {
		long += "padding "
	}
	snap := Snapshot{Nodes: nodes(long, "Seconds left: 49")}
	got, ok := Countdown(snap)
	if !ok || got != 49 {
		t.Fatalf("expected 49, got %d (ok=%v)", got, ok)
	}
}

func TestCountdownOutOfRangeFallsThrough(t *testing.T) {
	snap := Snapshot{Nodes: nodes("Time: 999", "Seconds left: 3")}
	got, ok := Countdown(snap)
	if !ok || got != 3 {
		t.Fatalf("expected 3, got %d (ok=%v)", got, ok)
	}
}

func TestOperationOf(t *testing.T) {
	cases := map[string]model.OperationType{
		"3 + 4":   model.OpAddition,
		"9 - 2":   model.OpSubtraction,
		"6 × 7":   model.OpMultiplication,
		"6 * 7":   model.OpMultiplication,
		"42 ÷ 6":  model.OpDivision,
		"42 / 6":  model.OpDivision,
		"missing": model.OpUnknown,
	}
	for question, want := range cases {
		if got := OperationOf(question); got != want {
			t.Fatalf("%q: expected %s, got %s", question, want, got)
		}
	}
}

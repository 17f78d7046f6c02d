package stats

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/verte-zerg/zetatrack/internal/model"
)

func stored(id string, score int, at time.Time, problems ...model.Problem) model.StoredSession {
	return model.StoredSession{ID: id, Score: score, Timestamp: at, Problems: problems}
}

func TestQuickEmpty(t *testing.T) {
	q := Quick(nil)
	if q.TotalGames != 0 || q.Recommendation != "Start playing to see your stats!" {
		t.Fatalf("unexpected empty stats: %+v", q)
	}
}

func TestQuickUsesMostRecentSession(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	sessions := []model.StoredSession{
		stored("old", 40, t0, model.Problem{Question: "8 ÷ 2", Answer: "4", LatencyMs: 9000}),
		stored("new", 21, t0.Add(time.Hour),
			model.Problem{Question: "3 + 4", Answer: "7", LatencyMs: 800},
			model.Problem{Question: "9 - 2", Answer: "7", LatencyMs: 2400},
			model.Problem{Question: "9 - 5", Answer: "4", LatencyMs: 1600},
		),
	}
	q := Quick(sessions)
	if q.RecentScore != 21 || q.BestScore != 40 || q.TotalGames != 2 || q.AvgScore != 31 {
		t.Fatalf("unexpected quick stats: %+v", q)
	}
	if q.Slowest != model.OpSubtraction || q.SlowestAvgMs != 2000 {
		t.Fatalf("expected subtraction at 2000ms, got %q %.0f", q.Slowest, q.SlowestAvgMs)
	}
	if q.Recommendation != "Focus on subtraction practice to improve your speed" {
		t.Fatalf("unexpected recommendation: %q", q.Recommendation)
	}
}

func TestQuickUnknownSlowestGivesGeneralAdvice(t *testing.T) {
	q := Quick([]model.StoredSession{stored("a", 3, time.Time{},
		model.Problem{Question: "who knows", Answer: "1", LatencyMs: 5000},
		model.Problem{Question: "1 + 1", Answer: "2", LatencyMs: 100},
	)})
	if q.Slowest != model.OpUnknown || q.HasSlowest() {
		t.Fatalf("expected unknown slowest, got %+v", q)
	}
	if q.Recommendation != "Keep practicing to improve your mental math skills!" {
		t.Fatalf("unexpected recommendation: %q", q.Recommendation)
	}
}

func TestSlowestOperationAllZero(t *testing.T) {
	op, avg := SlowestOperation([]model.Problem{
		{Question: model.MissedPrefix + "-1", Answer: model.UltraFastAnswer},
	})
	if op != "" || avg != 0 {
		t.Fatalf("expected no slowest operation, got %q %.0f", op, avg)
	}
}

func TestOperationBreakdownSkipsPlaceholderLatency(t *testing.T) {
	got := OperationBreakdown([]model.StoredSession{stored("a", 4, time.Time{},
		model.Problem{Question: "2 + 2", Answer: "4", LatencyMs: 1000, OperationType: model.OpAddition},
		model.Problem{Question: "5 × 5", Answer: "25", LatencyMs: 3000, OperationType: model.OpMultiplication},
		model.Problem{Question: "missed-problem-3", Answer: model.UltraFastAnswer, OperationType: model.OpUnknown},
		model.Problem{Question: "4 + 4", Answer: "8", LatencyMs: 2000, OperationType: model.OpAddition},
	)})
	want := []model.OperationAggregate{
		{Operation: model.OpMultiplication, Count: 1, LatencySumMs: 3000},
		{Operation: model.OpAddition, Count: 2, LatencySumMs: 3000},
		{Operation: model.OpUnknown, Count: 1, Placeholders: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("breakdown mismatch (-want +got):\n%s", diff)
	}
}

func TestSummariesAreOldestFirst(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	got := Summaries([]model.StoredSession{
		stored("b", 2, t0.Add(time.Minute),
			model.Problem{Question: "1 + 1", Answer: "2", LatencyMs: 500},
			model.Problem{Question: "missed-problem-2", Answer: model.UltraFastAnswer},
		),
		stored("a", 1, t0),
	})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[1].Problems != 2 || got[1].AvgMs != 500 {
		t.Fatalf("unexpected summary: %+v", got[1])
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 9}); got != " @" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{3, 3, 3}); got != "+++" {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
}

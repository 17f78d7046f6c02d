// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/zetatrack/internal/extract"
	"github.com/verte-zerg/zetatrack/internal/model"
)

const sparkChars = " .:-=+*#%@"

const (
	emptyRecommendation   = "Start playing to see your stats!"
	generalRecommendation = "Keep practicing to improve your mental math skills!"
)

// QuickStats is the at-a-glance summary of a player's history.
type QuickStats struct {
	RecentScore    int
	BestScore      int
	TotalGames     int
	AvgScore       int
	Slowest        model.OperationType
	SlowestAvgMs   float64
	Recommendation string
}

// HasSlowest reports whether a known operation stood out in the most recent session.
func (q QuickStats) HasSlowest() bool {
	return q.Slowest != "" && q.Slowest != model.OpUnknown
}

// NewestFirst returns a copy of sessions ordered by timestamp, most recent first.
func NewestFirst(sessions []model.StoredSession) []model.StoredSession {
	out := make([]model.StoredSession, len(sessions))
	copy(out, sessions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Quick computes quick stats. The slowest operation comes from the most recent session only.
func Quick(sessions []model.StoredSession) QuickStats {
	if len(sessions) == 0 {
		return QuickStats{Recommendation: emptyRecommendation}
	}
	ordered := NewestFirst(sessions)
	q := QuickStats{
		RecentScore: ordered[0].Score,
		BestScore:   ordered[0].Score,
		TotalGames:  len(ordered),
	}
	sum := 0
	for _, s := range ordered {
		sum += s.Score
		if s.Score > q.BestScore {
			q.BestScore = s.Score
		}
	}
	q.AvgScore = int(math.Round(float64(sum) / float64(len(ordered))))
	q.Slowest, q.SlowestAvgMs = SlowestOperation(ordered[0].Problems)
	q.Recommendation = generalRecommendation
	if q.HasSlowest() {
		q.Recommendation = fmt.Sprintf("Focus on %s practice to improve your speed", q.Slowest)
	}
	return q
}

// SlowestOperation returns the operation with the highest mean latency. Placeholders count
// toward the unknown bucket, so unknown may win; an all-zero input yields "".
func SlowestOperation(problems []model.Problem) (model.OperationType, float64) {
	var slowest model.OperationType
	maxAvg := 0.0
	for _, agg := range groupProblems(problems, true) {
		avg := float64(agg.LatencySumMs) / float64(agg.Count)
		if avg > maxAvg {
			maxAvg = avg
			slowest = agg.Operation
		}
	}
	return slowest, maxAvg
}

// OperationBreakdown aggregates problems per operation across sessions, slowest first.
func OperationBreakdown(sessions []model.StoredSession) []model.OperationAggregate {
	var problems []model.Problem
	for _, s := range sessions {
		problems = append(problems, s.Problems...)
	}
	aggs := groupProblems(problems, false)
	SortBySlowest(aggs)
	return aggs
}

// SortBySlowest orders aggregates by mean observed latency, highest first.
func SortBySlowest(aggs []model.OperationAggregate) {
	sort.SliceStable(aggs, func(i, j int) bool {
		ai, aj := aggs[i].AverageMs(), aggs[j].AverageMs()
		if ai == aj {
			return aggs[i].Operation < aggs[j].Operation
		}
		return ai > aj
	})
}

// groupProblems buckets problems by operation in first-seen order. With
// includeAll unset, placeholders are counted but add no latency.
func groupProblems(problems []model.Problem, includeAll bool) []model.OperationAggregate {
	index := map[model.OperationType]int{}
	var aggs []model.OperationAggregate
	for _, p := range problems {
		op := operationOf(p)
		i, ok := index[op]
		if !ok {
			i = len(aggs)
			index[op] = i
			aggs = append(aggs, model.OperationAggregate{Operation: op})
		}
		aggs[i].Count++
		if p.Placeholder() {
			aggs[i].Placeholders++
			if !includeAll {
				continue
			}
		}
		aggs[i].LatencySumMs += p.LatencyMs
	}
	return aggs
}

func operationOf(p model.Problem) model.OperationType {
	if p.OperationType != "" {
		return p.OperationType
	}
	if model.PlaceholderQuestion(p.Question) {
		return model.OpUnknown
	}
	return extract.OperationOf(p.Question)
}

// Summaries converts stored sessions into oldest-first per-session aggregates.
func Summaries(sessions []model.StoredSession) []model.SessionAggregate {
	ordered := NewestFirst(sessions)
	out := make([]model.SessionAggregate, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0; i-- {
		s := ordered[i]
		agg := model.SessionAggregate{
			ID:        s.ID,
			Timestamp: s.Timestamp,
			Score:     s.Score,
			Problems:  len(s.Problems),
		}
		var sum int64
		observed := 0
		for _, p := range s.Problems {
			if p.Placeholder() {
				continue
			}
			sum += p.LatencyMs
			observed++
		}
		if observed > 0 {
			agg.AvgMs = float64(sum) / float64(observed)
		}
		out = append(out, agg)
	}
	return out
}

// ScoreSeries returns the score of each summary in order.
func ScoreSeries(sessions []model.SessionAggregate) []float64 {
	out := make([]float64, len(sessions))
	for i, s := range sessions {
		out[i] = float64(s.Score)
	}
	return out
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 || len(values) == 0 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		n := i + 1
		if i >= window {
			sum -= values[i-window]
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := bounds(values)
	if hi-lo < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	last := len(sparkChars) - 1
	for _, v := range values {
		idx := int(math.Round((v - lo) / (hi - lo) * float64(last)))
		idx = max(0, min(idx, last))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func bounds(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

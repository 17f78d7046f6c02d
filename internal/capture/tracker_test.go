package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/verte-zerg/zetatrack/internal/clock"
	"github.com/verte-zerg/zetatrack/internal/extract"
	"github.com/verte-zerg/zetatrack/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSaver struct {
	mu       sync.Mutex
	sessions []model.Session
	err      error
}

func (r *recordingSaver) Save(_ context.Context, s model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
	return r.err
}

func (r *recordingSaver) saved() []model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Session(nil), r.sessions...)
}

type page struct {
	countdown *int
	score     *int
	question  string
	input     string
}

func (p page) snapshot() extract.Snapshot {
	var nodes []extract.Node
	snap := extract.Snapshot{Input: p.input, Selected: map[string]string{}}
	if p.countdown != nil {
		snap.Selected["#game .left"] = fmt.Sprintf("Seconds left: %d", *p.countdown)
	}
	if p.score != nil {
		nodes = append(nodes, extract.Node{Text: fmt.Sprintf("Score: %d", *p.score), Height: 20})
	}
	if p.question != "" {
		nodes = append(nodes, extract.Node{Text: p.question + " =", Height: 24})
	}
	snap.Nodes = nodes
	return snap
}

func intp(v int) *int { return &v }

type fixture struct {
	clock   *clock.FakeClock
	saver   *recordingSaver
	tracker *Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	saver := &recordingSaver{}
	tr := NewTracker(Options{Clock: c, Saver: saver})
	return &fixture{clock: c, saver: saver, tracker: tr}
}

func (f *fixture) observe(countdown, score int, question, input string) {
	f.tracker.Observe(page{countdown: intp(countdown), score: intp(score), question: question, input: input}.snapshot())
}

func (f *fixture) finish(t *testing.T) {
	t.Helper()
	f.clock.Advance(DefaultGrace)
	f.tracker.Wait()
}

func TestCountdownSequenceFinalizesOneSession(t *testing.T) {
	f := newFixture(t)
	f.observe(0, 0, "", "")
	if got := f.tracker.Status().Phase; got != Idle {
		t.Fatalf("expected idle before the game, got %s", got)
	}
	f.observe(95, 0, "3 + 4", "")
	for _, c := range []int{5, 4, 3, 2, 1, 0} {
		f.observe(c, 0, "3 + 4", "")
	}
	if got := f.tracker.Status().Phase; got != Finalizing {
		t.Fatalf("expected finalizing, got %s", got)
	}
	f.observe(0, 0, "3 + 4", "")
	f.finish(t)

	saved := f.saver.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 saved session, got %d", len(saved))
	}
	if saved[0].DetectedDurationSeconds == nil || *saved[0].DetectedDurationSeconds != 120 {
		t.Fatalf("expected duration 120, got %v", saved[0].DetectedDurationSeconds)
	}
	if got := f.tracker.Status().Phase; got != Idle {
		t.Fatalf("expected idle after commit, got %s", got)
	}
}

func TestScoreJumpAddsPlaceholders(t *testing.T) {
	f := newFixture(t)
	f.observe(110, 0, "3 + 4", "")
	f.observe(109, 3, "3 + 4", "")

	if got := f.tracker.Status().Problems; got != 2 {
		t.Fatalf("expected 2 placeholders, got %d", got)
	}
	f.observe(108, 4, "5 + 6", "")
	if got := f.tracker.Status().Problems; got != 3 {
		t.Fatalf("expected single increments to add no placeholders, got %d problems", got)
	}
}

func TestPlaceholderShape(t *testing.T) {
	f := newFixture(t)
	f.observe(110, 0, "", "")
	f.observe(109, 2, "", "")
	f.observe(0, 2, "", "")
	f.finish(t)

	saved := f.saver.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 session, got %d", len(saved))
	}
	want := []model.Problem{
		{Question: "missed-problem-1", Answer: model.UltraFastAnswer, OperationType: model.OpUnknown},
		{Question: "final-missed-2", Answer: model.UltraFastAnswer, OperationType: model.OpUnknown},
	}
	if diff := cmp.Diff(want, saved[0].Problems); diff != "" {
		t.Fatalf("unexpected problems (-want +got):\n%s", diff)
	}
}

func TestProblemLogUsesAnswerFallbacks(t *testing.T) {
	f := newFixture(t)
	f.observe(119, 0, "3 + 4", "")
	f.clock.Advance(1500 * time.Millisecond)
	f.tracker.Input("7")
	f.observe(118, 1, "8 × 9", "")
	f.clock.Advance(800 * time.Millisecond)
	f.observe(117, 2, "20 ÷ 5", "")
	f.clock.Advance(300 * time.Millisecond)
	f.tracker.Input("4")
	f.observe(0, 3, "20 ÷ 5", "4")
	f.finish(t)

	saved := f.saver.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 session, got %d", len(saved))
	}
	want := []model.Problem{
		{Question: "3 + 4", Answer: "7", LatencyMs: 1500, OperationType: model.OpAddition},
		{Question: "8 × 9", Answer: "7", LatencyMs: 800, OperationType: model.OpMultiplication},
		{Question: "20 ÷ 5", Answer: "4", LatencyMs: 1300, OperationType: model.OpDivision},
	}
	if diff := cmp.Diff(want, saved[0].Problems); diff != "" {
		t.Fatalf("unexpected problems (-want +got):\n%s", diff)
	}
	if saved[0].Score != 3 {
		t.Fatalf("expected score 3, got %d", saved[0].Score)
	}
}

func TestUnknownAnswerWhenNothingTyped(t *testing.T) {
	f := newFixture(t)
	f.observe(100, 0, "1 + 1", "")
	f.observe(99, 1, "2 + 2", "")
	f.observe(0, 1, "2 + 2", "")
	f.finish(t)

	saved := f.saver.saved()
	if len(saved) != 1 || len(saved[0].Problems) != 1 {
		t.Fatalf("expected one session with one problem, got %+v", saved)
	}
	if got := saved[0].Problems[0].Answer; got != model.UnknownAnswer {
		t.Fatalf("expected %q, got %q", model.UnknownAnswer, got)
	}
}

func TestDoubleCommitPersistsOnce(t *testing.T) {
	f := newFixture(t)
	f.observe(100, 0, "", "")
	f.observe(0, 0, "", "")
	f.observe(0, 0, "", "")
	f.clock.Advance(DefaultGrace)
	f.tracker.commit()
	f.tracker.Wait()

	if got := len(f.saver.saved()); got != 1 {
		t.Fatalf("expected 1 save, got %d", got)
	}
	if f.clock.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", f.clock.Pending())
	}
}

func TestLengthMatchingScoreIsPreserved(t *testing.T) {
	f := newFixture(t)
	f.observe(100, 0, "1 + 1", "")
	f.observe(99, 2, "2 + 2", "")
	f.observe(0, 2, "2 + 2", "")
	if got := f.tracker.Status().Problems; got != 2 {
		t.Fatalf("expected 2 buffered problems before commit, got %d", got)
	}
	f.finish(t)

	saved := f.saver.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 session, got %d", len(saved))
	}
	if got := len(saved[0].Problems); got != 2 {
		t.Fatalf("expected 2 problems, got %d", got)
	}
}

func TestTruncatesExcessProblems(t *testing.T) {
	f := newFixture(t)
	f.observe(100, 0, "1 + 1", "")
	f.observe(99, 0, "2 + 2", "")
	f.observe(98, 0, "3 + 3", "")
	f.observe(0, 1, "3 + 3", "")
	f.finish(t)

	saved := f.saver.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 session, got %d", len(saved))
	}
	if got := len(saved[0].Problems); got != 1 {
		t.Fatalf("expected truncation to 1 problem, got %d", got)
	}
	if saved[0].Problems[0].Question != "1 + 1" {
		t.Fatalf("expected first problem kept, got %q", saved[0].Problems[0].Question)
	}
}

func TestNonTargetDurationIsNotPersisted(t *testing.T) {
	f := newFixture(t)
	var outcomes []*Outcome
	f.tracker.onChange = func(s Status) {
		if s.Last != nil {
			outcomes = append(outcomes, s.Last)
		}
	}
	f.observe(45, 0, "", "")
	f.observe(0, 4, "", "")
	f.finish(t)

	if got := len(f.saver.saved()); got != 0 {
		t.Fatalf("expected no saves, got %d", got)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if d := outcomes[0].Session.DetectedDurationSeconds; d == nil || *d != 60 {
		t.Fatalf("expected duration 60, got %v", d)
	}
	if outcomes[0].Persisted {
		t.Fatalf("expected outcome not persisted")
	}
}

func TestZeroScoreSessionIsEligible(t *testing.T) {
	f := newFixture(t)
	f.observe(120, 0, "", "")
	f.observe(0, 0, "", "")
	f.finish(t)

	saved := f.saver.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 save, got %d", len(saved))
	}
	if saved[0].Score != 0 || len(saved[0].Problems) != 0 {
		t.Fatalf("expected empty session, got %+v", saved[0])
	}
}

func TestSaveFailureDoesNotBlockNextGame(t *testing.T) {
	f := newFixture(t)
	f.saver.err = errors.New("boom")
	var failures int
	var mu sync.Mutex
	f.tracker.onChange = func(s Status) {
		if s.Last != nil && s.Last.Err != nil {
			mu.Lock()
			failures++
			mu.Unlock()
		}
	}
	f.observe(120, 0, "", "")
	f.observe(0, 0, "", "")
	f.finish(t)

	f.observe(120, 0, "4 + 4", "")
	if got := f.tracker.Status().Phase; got != Active {
		t.Fatalf("expected a new active game, got %s", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if failures != 1 {
		t.Fatalf("expected 1 failure outcome, got %d", failures)
	}
}

func TestPositiveCountdownDuringGraceIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.observe(100, 0, "", "")
	f.observe(0, 0, "", "")
	f.observe(120, 0, "", "")
	if got := f.tracker.Status().Phase; got != Finalizing {
		t.Fatalf("expected finalizing, got %s", got)
	}
	f.finish(t)
	if got := len(f.saver.saved()); got != 1 {
		t.Fatalf("expected 1 save, got %d", got)
	}
}

type staticSource struct{ snap extract.Snapshot }

func (s staticSource) Snapshot(context.Context) (extract.Snapshot, error) { return s.snap, nil }

func TestCommitRescansFinalScore(t *testing.T) {
	c := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	saver := &recordingSaver{}
	final := page{score: intp(5)}.snapshot()
	final.Nodes[0].Text = "Your final score: 5"
	tr := NewTracker(Options{Clock: c, Saver: saver, Source: staticSource{snap: final}})

	tr.Observe(page{countdown: intp(100), score: intp(0)}.snapshot())
	tr.Observe(page{countdown: intp(0), score: intp(3)}.snapshot())
	c.Advance(DefaultGrace)
	tr.Wait()

	saved := saver.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 save, got %d", len(saved))
	}
	if saved[0].Score != 5 || len(saved[0].Problems) != 5 {
		t.Fatalf("expected score 5 with 5 problems, got %d/%d", saved[0].Score, len(saved[0].Problems))
	}
}

func TestInputDeduplicates(t *testing.T) {
	f := newFixture(t)
	var changes int
	f.tracker.onChange = func(Status) { changes++ }
	f.observe(100, 0, "1 + 1", "")
	changes = 0
	f.tracker.Input("2")
	f.tracker.Input("2")
	f.tracker.Input("")
	if changes != 1 {
		t.Fatalf("expected 1 change, got %d", changes)
	}
	if got := f.tracker.Status().Answer; got != "2" {
		t.Fatalf("expected answer 2, got %q", got)
	}
}

func TestInputIgnoredWhileIdle(t *testing.T) {
	f := newFixture(t)
	f.tracker.Input("5")
	if got := f.tracker.Status().Answer; got != "" {
		t.Fatalf("expected no answer, got %q", got)
	}
}

func TestBucketDuration(t *testing.T) {
	cases := map[int]int{95: 120, 91: 120, 90: 90, 61: 90, 60: 60, 45: 60, 31: 60, 30: 30, 1: 30}
	for maxSeen, want := range cases {
		got, ok := BucketDuration(maxSeen)
		if !ok || got != want {
			t.Fatalf("max %d: expected %d, got %d (ok=%v)", maxSeen, want, got, ok)
		}
	}
	if _, ok := BucketDuration(0); ok {
		t.Fatalf("expected no bucket for 0")
	}
}

package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/zetatrack/internal/capture"
	"github.com/verte-zerg/zetatrack/internal/model"
)

func TestRenderFooterFormats(t *testing.T) {
	m := NewModel("https://example.test", []model.StoredSession{
		{ID: "a", Score: 30, Timestamp: time.Unix(100, 0)},
		{ID: "b", Score: 41, Timestamp: time.Unix(200, 0), Problems: []model.Problem{
			{Question: "9 × 9", Answer: "81", LatencyMs: 4000, OperationType: model.OpMultiplication},
		}},
	})
	out := m.renderFooter()
	if !containsAll(out, []string{"Last 41", "Best 41", "Avg 36", "Games 2", "Slowest multiplication"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}
}

func TestRenderFooterEmptyHistory(t *testing.T) {
	out := NewModel("", nil).renderFooter()
	if !strings.Contains(out, "Start playing") {
		t.Fatalf("expected empty-history hint, got %s", out)
	}
}

func TestStatusUpdatesView(t *testing.T) {
	m := NewModel("https://example.test", nil)
	d := 120
	m.Update(StatusMsg(capture.Status{Phase: capture.Active, Countdown: 87, Score: 12, Problems: 11, Question: "6 + 9", Answer: "15", Duration: &d}))
	view := m.View()
	if !containsAll(view, []string{"87s left", "6 + 9", "Score", "12", "120s"}) {
		t.Fatalf("unexpected view:\n%s", view)
	}
}

func TestPersistedOutcomeUpdatesHistory(t *testing.T) {
	m := NewModel("", nil)
	session := model.Session{ID: "x", Score: 25, EndedAt: time.Unix(300, 0)}
	m.Update(StatusMsg(capture.Status{Phase: capture.Idle, Last: &capture.Outcome{Session: session, Persisted: true}}))
	m.Update(StatusMsg(capture.Status{Phase: capture.Idle, Last: &capture.Outcome{Session: model.Session{Score: 3}, Err: errors.New("offline")}}))

	if m.quick.TotalGames != 1 || m.quick.RecentScore != 25 {
		t.Fatalf("expected one persisted game, got %+v", m.quick)
	}
	if len(m.recent) != 2 || m.recent[0].Err == nil {
		t.Fatalf("expected newest outcome first, got %+v", m.recent)
	}
	if !containsAll(m.View(), []string{"saved", "not saved: offline"}) {
		t.Fatalf("unexpected view:\n%s", m.View())
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

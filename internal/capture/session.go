package capture

import (
	"fmt"
	"time"

	"github.com/verte-zerg/zetatrack/internal/extract"
	"github.com/verte-zerg/zetatrack/internal/model"
)

// sessionContext holds every transient value of one game. It is replaced
// wholesale whenever the tracker returns to Idle.
type sessionContext struct {
	problems []model.Problem

	question      string
	questionStart time.Time

	answers answerRegister

	lastScore int
	maxTimer  int
	duration  *int
	startedAt time.Time
}

func newSessionContext(start time.Time, countdown int) *sessionContext {
	return &sessionContext{
		maxTimer:  countdown,
		startedAt: start,
	}
}

// appendPlaceholders adds n synthetic problems named with prefix and their position.
func (s *sessionContext) appendPlaceholders(prefix string, n int) {
	for i := 0; i < n; i++ {
		s.problems = append(s.problems, model.Problem{
			Question:      fmt.Sprintf("%s-%d", prefix, len(s.problems)+1),
			Answer:        model.UltraFastAnswer,
			LatencyMs:     0,
			OperationType: model.OpUnknown,
		})
	}
}

// closeProblem records the open problem, if any, using the answer register fallbacks.
func (s *sessionContext) closeProblem(now time.Time) bool {
	if s.question == "" {
		return false
	}
	latency := now.Sub(s.questionStart).Milliseconds()
	if latency < 0 {
		latency = 0
	}
	s.problems = append(s.problems, model.Problem{
		Question:      s.question,
		Answer:        s.answers.resolve(),
		LatencyMs:     latency,
		OperationType: extract.OperationOf(s.question),
	})
	s.question = ""
	return true
}

func (s *sessionContext) openProblem(question string, now time.Time) {
	s.question = question
	s.questionStart = now
	s.answers.nextProblem()
}

// answerRegister is a last-writer-wins register fed by every answer producer.
type answerRegister struct {
	current string
	last    string
}

// offer records a non-empty value that differs from the last one seen.
func (r *answerRegister) offer(value string) bool {
	if value == "" || value == r.last {
		return false
	}
	r.last = value
	r.current = value
	return true
}

func (r *answerRegister) nextProblem() {
	r.current = ""
}

func (r *answerRegister) resolve() string {
	if r.current != "" {
		return r.current
	}
	if r.last != "" {
		return r.last
	}
	return model.UnknownAnswer
}

// BucketDuration maps the highest countdown seen to the nominal game length.
func BucketDuration(maxSeen int) (int, bool) {
	switch {
	case maxSeen > 90:
		return 120, true
	case maxSeen > 60:
		return 90, true
	case maxSeen > 30:
		return 60, true
	case maxSeen > 0:
		return 30, true
	default:
		return 0, false
	}
}

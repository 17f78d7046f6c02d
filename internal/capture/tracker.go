// Package capture turns page observations into finalized game sessions.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verte-zerg/zetatrack/internal/clock"
	"github.com/verte-zerg/zetatrack/internal/extract"
	"github.com/verte-zerg/zetatrack/internal/model"
)

// Phase is the tracker's lifecycle state.
type Phase int

const (
	Idle Phase = iota
	Active
	Finalizing
)

func (p Phase) String() string {
	switch p {
	case Active:
		return "active"
	case Finalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

const (
	// DefaultTargetDuration is the only game length that is persisted.
	DefaultTargetDuration = 120
	// DefaultGrace is the delay between the countdown reaching zero and the commit.
	DefaultGrace = time.Second

	saveTimeout     = 30 * time.Second
	snapshotTimeout = 2 * time.Second
)

// Saver persists a finalized session.
type Saver interface {
	Save(ctx context.Context, session model.Session) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, session model.Session) error

// Save calls f.
func (f SaverFunc) Save(ctx context.Context, session model.Session) error {
	return f(ctx, session)
}

// Source re-reads the page when a session is committed.
type Source interface {
	Snapshot(ctx context.Context) (extract.Snapshot, error)
}

// Status is a point-in-time view of the tracker for display.
type Status struct {
	Phase     Phase
	Countdown int
	Score     int
	Problems  int
	Question  string
	Answer    string
	Duration  *int
	// Last is set on the notification produced by a commit.
	Last *Outcome
}

// Outcome describes a committed session.
type Outcome struct {
	Session   model.Session
	Persisted bool
	Err       error
}

// Options configures a Tracker.
type Options struct {
	Clock          clock.Clock
	Saver          Saver
	Source         Source
	Logger         *zap.Logger
	TargetDuration int
	Grace          time.Duration
	// OnChange receives a status after every step. It runs outside the tracker lock.
	OnChange func(Status)
}

// Tracker is the session state machine. All methods are safe for concurrent use;
// each step runs to completion before the next one starts.
type Tracker struct {
	mu sync.Mutex

	clock    clock.Clock
	saver    Saver
	source   Source
	logger   *zap.Logger
	target   int
	grace    time.Duration
	onChange func(Status)

	phase     Phase
	ended     bool
	session   *sessionContext
	last      extract.Snapshot
	countdown int

	saves sync.WaitGroup
}

// NewTracker returns an Idle tracker.
func NewTracker(opts Options) *Tracker {
	t := &Tracker{
		clock:    opts.Clock,
		saver:    opts.Saver,
		source:   opts.Source,
		logger:   opts.Logger,
		target:   opts.TargetDuration,
		grace:    opts.Grace,
		onChange: opts.OnChange,
		ended:    true,
	}
	if t.clock == nil {
		t.clock = clock.Real()
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.target <= 0 {
		t.target = DefaultTargetDuration
	}
	if t.grace <= 0 {
		t.grace = DefaultGrace
	}
	return t
}

// Observe processes one "page changed" notification.
func (t *Tracker) Observe(snap extract.Snapshot) {
	t.mu.Lock()
	t.last = snap
	countdown, hasCountdown := extract.Countdown(snap)
	if hasCountdown {
		t.countdown = countdown
	}

	if t.phase == Idle {
		if !hasCountdown || countdown <= 0 {
			status := t.statusLocked()
			t.mu.Unlock()
			t.notify(status)
			return
		}
		t.startLocked(countdown, snap)
	}

	t.scoreStepLocked(snap)
	t.problemStepLocked(snap)
	if hasCountdown {
		t.countdownStepLocked(countdown)
	}
	t.session.answers.offer(snap.Input)

	status := t.statusLocked()
	t.mu.Unlock()
	t.notify(status)
}

// Input records an answer value from any input producer.
func (t *Tracker) Input(value string) {
	t.mu.Lock()
	if t.phase == Idle || !t.session.answers.offer(value) {
		t.mu.Unlock()
		return
	}
	t.logger.Debug("answer captured",
		zap.String("answer", value),
		zap.String("problem", t.session.question))
	status := t.statusLocked()
	t.mu.Unlock()
	t.notify(status)
}

// Status returns the current tracker status.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

// Wait blocks until every save started by the tracker has returned.
func (t *Tracker) Wait() {
	t.saves.Wait()
}

func (t *Tracker) startLocked(countdown int, snap extract.Snapshot) {
	now := t.clock.Now()
	t.phase = Active
	t.ended = false
	t.session = newSessionContext(now, countdown)
	if question, ok := extract.Problem(snap); ok {
		t.session.openProblem(question, now)
	}
	t.logger.Info("game started", zap.Int("countdown", countdown))
}

func (t *Tracker) scoreStepLocked(snap extract.Snapshot) {
	score, ok := extract.Score(snap)
	if !ok || score <= t.session.lastScore {
		return
	}
	delta := score - t.session.lastScore
	if missed := delta - 1; missed > 0 {
		t.logger.Warn("score advanced faster than observed problems",
			zap.Int("from", t.session.lastScore),
			zap.Int("to", score),
			zap.Int("placeholders", missed))
		t.session.appendPlaceholders(model.MissedPrefix, missed)
	}
	t.session.lastScore = score
}

func (t *Tracker) problemStepLocked(snap extract.Snapshot) {
	question, ok := extract.Problem(snap)
	if !ok || question == t.session.question {
		return
	}
	now := t.clock.Now()
	t.session.closeProblem(now)
	t.session.openProblem(question, now)
}

func (t *Tracker) countdownStepLocked(countdown int) {
	if t.phase == Finalizing {
		return
	}
	if countdown > t.session.maxTimer {
		t.session.maxTimer = countdown
	}
	if t.session.duration == nil && countdown > 0 {
		if d, ok := BucketDuration(t.session.maxTimer); ok {
			t.session.duration = &d
			t.logger.Info("game duration detected",
				zap.Int("duration", d),
				zap.Int("max_countdown", t.session.maxTimer))
		}
	}
	if countdown == 0 && !t.ended {
		t.ended = true
		t.phase = Finalizing
		t.logger.Info("countdown reached zero", zap.Duration("grace", t.grace))
		t.clock.AfterFunc(t.grace, t.commit)
	}
}

// commit finalizes the session once the grace period has elapsed.
func (t *Tracker) commit() {
	snap, fresh := t.rescan()

	t.mu.Lock()
	if t.phase != Finalizing || t.session == nil {
		t.mu.Unlock()
		return
	}
	if !fresh {
		snap = t.last
	}
	sess := t.session
	score, ok := extract.Score(snap)
	if !ok || score < sess.lastScore {
		score = sess.lastScore
	}

	sess.closeProblem(t.clock.Now())
	switch deficit := score - len(sess.problems); {
	case deficit > 0:
		t.logger.Warn("padding problems to match final score",
			zap.Int("score", score), zap.Int("placeholders", deficit))
		sess.appendPlaceholders(model.FinalPrefix, deficit)
	case deficit < 0:
		t.logger.Warn("truncating problems to match final score",
			zap.Int("score", score), zap.Int("excess", -deficit))
		sess.problems = sess.problems[:score]
	}

	session := model.Session{
		ID:                      uuid.NewString(),
		Score:                   score,
		Problems:                sess.problems,
		DetectedDurationSeconds: sess.duration,
		StartedAt:               sess.startedAt,
		EndedAt:                 t.clock.Now(),
	}
	eligible := sess.duration != nil && *sess.duration == t.target

	t.phase = Idle
	t.session = nil
	if eligible && t.saver != nil {
		t.saves.Add(1)
	}
	status := t.statusLocked()
	t.mu.Unlock()

	if !eligible {
		t.logger.Info("skipping session with non-target duration",
			zap.Intp("duration", session.DetectedDurationSeconds),
			zap.Int("target", t.target),
			zap.Int("score", score))
		status.Last = &Outcome{Session: session}
		t.notify(status)
		return
	}
	if t.saver == nil {
		status.Last = &Outcome{Session: session}
		t.notify(status)
		return
	}

	go func() {
		defer t.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		err := t.saver.Save(ctx, session)
		if err != nil {
			t.logger.Warn("failed to persist session", zap.String("session", session.ID), zap.Error(err))
		} else {
			t.logger.Info("session persisted",
				zap.String("session", session.ID),
				zap.Int("score", session.Score),
				zap.Int("problems", len(session.Problems)))
		}
		status := t.Status()
		status.Last = &Outcome{Session: session, Persisted: err == nil, Err: err}
		t.notify(status)
	}()
}

func (t *Tracker) rescan() (extract.Snapshot, bool) {
	if t.source == nil {
		return extract.Snapshot{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	snap, err := t.source.Snapshot(ctx)
	if err != nil {
		t.logger.Debug("final rescan failed, using last snapshot", zap.Error(err))
		return extract.Snapshot{}, false
	}
	return snap, true
}

func (t *Tracker) statusLocked() Status {
	status := Status{Phase: t.phase, Countdown: t.countdown}
	if t.session == nil {
		return status
	}
	status.Score = t.session.lastScore
	status.Problems = len(t.session.problems)
	status.Question = t.session.question
	status.Answer = t.session.answers.current
	if t.session.duration != nil {
		d := *t.session.duration
		status.Duration = &d
	}
	return status
}

func (t *Tracker) notify(status Status) {
	if t.onChange != nil {
		t.onChange(status)
	}
}

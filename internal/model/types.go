// Package model defines shared data structures.
package model

import (
	"strings"
	"time"
)

// OperationType classifies a problem by its arithmetic operator.
type OperationType string

const (
	OpAddition       OperationType = "addition"
	OpSubtraction    OperationType = "subtraction"
	OpMultiplication OperationType = "multiplication"
	OpDivision       OperationType = "division"
	OpUnknown        OperationType = "unknown"
)

// Operations lists the known operation types in display order.
var Operations = []OperationType{OpAddition, OpSubtraction, OpMultiplication, OpDivision}

// UltraFastAnswer marks a placeholder problem that was solved between observations.
const UltraFastAnswer = "ultra-fast"

// UnknownAnswer is recorded when no input value was ever captured.
const UnknownAnswer = "unknown"

// Placeholder question prefixes for problems missed mid-game and padded at the end.
const (
	MissedPrefix = "missed-problem"
	FinalPrefix  = "final-missed"
)

// PlaceholderQuestion reports whether question names a synthesized problem.
func PlaceholderQuestion(question string) bool {
	return strings.HasPrefix(question, MissedPrefix+"-") || strings.HasPrefix(question, FinalPrefix+"-")
}

// Problem is one solved problem within a session.
type Problem struct {
	Question      string
	Answer        string
	LatencyMs     int64
	OperationType OperationType
}

// Placeholder reports whether the problem was synthesized during reconciliation.
func (p Problem) Placeholder() bool {
	return p.Answer == UltraFastAnswer && PlaceholderQuestion(p.Question)
}

// Session is a finalized game session.
type Session struct {
	ID                      string
	Score                   int
	Problems                []Problem
	DetectedDurationSeconds *int
	StartedAt               time.Time
	EndedAt                 time.Time
}

// Credential is the cached bearer credential from the identity service.
type Credential struct {
	AuthToken    string
	RefreshToken string
	SubjectID    string
	IssuedAt     time.Time
}

// Empty reports whether the credential carries no token.
func (c Credential) Empty() bool {
	return c.AuthToken == ""
}

// StoredSession is a session as read back from the remote or local store.
type StoredSession struct {
	ID        string
	Score     int
	Timestamp time.Time
	UserID    string
	Problems  []Problem
	Remote    bool
}

// CaptureConfig defines tracker and browser host settings.
type CaptureConfig struct {
	URL            string
	TargetDuration int
	Grace          time.Duration
	PollInterval   time.Duration
	Headless       bool
	DebuggerURL    string
	ChromeBin      string
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Local       bool
	Last        int
	CurveWindow int
}

// OperationAggregate summarizes problems of one operation type.
type OperationAggregate struct {
	Operation    OperationType
	Count        int
	LatencySumMs int64
	Placeholders int
}

// SessionAggregate summarizes a session for reporting.
type SessionAggregate struct {
	ID        string
	Timestamp time.Time
	Score     int
	Problems  int
	AvgMs     float64
}

// AverageMs returns the mean latency of the observed (non-placeholder) problems.
func (a OperationAggregate) AverageMs() float64 {
	observed := a.Count - a.Placeholders
	if observed <= 0 {
		return 0
	}
	return float64(a.LatencySumMs) / float64(observed)
}

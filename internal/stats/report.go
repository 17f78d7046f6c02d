package stats

import (
	"context"

	"github.com/verte-zerg/zetatrack/internal/model"
)

// SessionSource lists stored sessions. Both the remote client and the local cache satisfy it
// through SourceFunc.
type SessionSource interface {
	Sessions(ctx context.Context) ([]model.StoredSession, error)
}

// SourceFunc adapts a function to SessionSource.
type SourceFunc func(ctx context.Context) ([]model.StoredSession, error)

// Sessions calls f.
func (f SourceFunc) Sessions(ctx context.Context) ([]model.StoredSession, error) {
	return f(ctx)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Quick      QuickStats
	Sessions   []model.SessionAggregate
	Operations []model.OperationAggregate
	Window     []model.OperationAggregate
}

// BuildReport loads sessions from src and prepares everything the renderers need.
// Sessions are oldest first; Window covers the last CurveWindow sessions.
func BuildReport(ctx context.Context, src SessionSource, cfg model.StatsConfig) (Report, error) {
	stored, err := src.Sessions(ctx)
	if err != nil {
		return Report{}, err
	}
	ordered := NewestFirst(stored)
	if cfg.Last > 0 && len(ordered) > cfg.Last {
		ordered = ordered[:cfg.Last]
	}
	window := ordered
	if cfg.CurveWindow > 0 && len(window) > cfg.CurveWindow {
		window = window[:cfg.CurveWindow]
	}
	return Report{
		Quick:      Quick(ordered),
		Sessions:   Summaries(ordered),
		Operations: OperationBreakdown(ordered),
		Window:     OperationBreakdown(window),
	}, nil
}

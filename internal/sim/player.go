package sim

import (
	"context"
	"strconv"
	"time"

	"github.com/verte-zerg/zetatrack/internal/clock"
	"github.com/verte-zerg/zetatrack/internal/extract"
)

// Sink receives what a browser host would report.
type Sink interface {
	Observe(snap extract.Snapshot)
	Input(value string)
}

const step = 100 * time.Millisecond

// Player answers every problem correctly at a steady pace.
type Player struct {
	Game  *Game
	Sink  Sink
	Clock *clock.FakeClock
	// Think is the time spent on each problem, rounded up to 100ms.
	Think time.Duration
	// HideEvery skips the page-change notification after every Nth solve,
	// as when the page updates twice between observations.
	HideEvery int
}

// Play runs a whole game, including the grace period that follows it.
// A cancelled ctx ends the game early; the grace period still elapses.
func (p *Player) Play(ctx context.Context, grace time.Duration) error {
	think := max(p.Think, step)
	p.Game.Start()
	p.observe(ctx)

	var sinceSolve, sinceTick time.Duration
	solved := 0
	for p.Game.Running() {
		if err := ctx.Err(); err != nil {
			p.Game.End()
			p.observe(ctx)
			p.Clock.Advance(grace)
			return err
		}
		p.Clock.Advance(step)
		sinceSolve += step
		sinceTick += step

		if sinceSolve >= think {
			sinceSolve = 0
			answer := strconv.Itoa(p.Game.Current().Answer)
			p.Game.Type(answer)
			p.Sink.Input(answer)
			if p.Game.Solve() {
				solved++
				if p.HideEvery <= 0 || solved%p.HideEvery != 0 {
					p.observe(ctx)
				}
			}
		}
		if sinceTick >= time.Second {
			sinceTick = 0
			p.Game.Tick()
			p.observe(ctx)
		}
	}
	p.Clock.Advance(grace)
	return nil
}

func (p *Player) observe(ctx context.Context) {
	snap, err := p.Game.Snapshot(ctx)
	if err != nil {
		return
	}
	p.Sink.Observe(snap)
}

// Package sim simulates the arithmetic game page so the tracker can run without a browser.
package sim

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/verte-zerg/zetatrack/internal/extract"
	"github.com/verte-zerg/zetatrack/internal/generator"
)

const (
	countdownSelector = "span.left"
	problemHeight     = 24
	labelHeight       = 18
)

// Game is an in-memory game page. It is safe for concurrent use.
type Game struct {
	mu       sync.Mutex
	gen      *generator.Generator
	duration int

	left     int
	score    int
	problem  generator.Problem
	input    string
	started  bool
	finished bool
}

// NewGame returns a game that lasts duration seconds once started.
func NewGame(gen *generator.Generator, duration int) *Game {
	return &Game{gen: gen, duration: duration}
}

// Start resets the page to a fresh game.
func (g *Game) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.left = g.duration
	g.score = 0
	g.input = ""
	g.problem = g.gen.Next()
	g.started = true
	g.finished = false
}

// Type replaces the answer field value.
func (g *Game) Type(value string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running() {
		g.input = value
	}
}

// Solve checks the typed answer. A correct answer scores, clears the field and
// shows the next problem.
func (g *Game) Solve() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running() || g.input != strconv.Itoa(g.problem.Answer) {
		return false
	}
	g.score++
	g.input = ""
	g.problem = g.gen.Next()
	return true
}

// Tick advances the countdown by one second and ends the game at zero.
func (g *Game) Tick() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running() {
		return
	}
	g.left--
	if g.left <= 0 {
		g.left = 0
		g.finished = true
	}
}

// End abandons the game as if the countdown ran out now.
func (g *Game) End() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running() {
		g.left = 0
		g.finished = true
	}
}

// Running reports whether the countdown is still going.
func (g *Game) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running()
}

// Current returns the problem on screen.
func (g *Game) Current() generator.Problem {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.problem
}

// Score returns the current score.
func (g *Game) Score() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.score
}

func (g *Game) running() bool {
	return g.started && !g.finished
}

// Snapshot renders the visible page.
func (g *Game) Snapshot(context.Context) (extract.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := extract.Snapshot{Selected: map[string]string{}}
	if !g.started {
		snap.Nodes = []extract.Node{{Text: "Arithmetic Game", Height: labelHeight}}
		return snap, nil
	}
	left := fmt.Sprintf("Seconds left: %d", g.left)
	snap.Selected[countdownSelector] = left
	snap.Nodes = append(snap.Nodes, extract.Node{Text: left, Height: labelHeight})
	if g.finished {
		snap.Nodes = append(snap.Nodes,
			extract.Node{Text: fmt.Sprintf("Score: %d", g.score), Height: labelHeight},
			extract.Node{Text: "Try again", Height: labelHeight},
		)
		return snap, nil
	}
	snap.Nodes = append(snap.Nodes,
		extract.Node{Text: fmt.Sprintf("Score: %d", g.score), Height: labelHeight},
		extract.Node{Text: g.problem.Question() + " =", Height: problemHeight},
	)
	snap.Input = g.input
	return snap, nil
}

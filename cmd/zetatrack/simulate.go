package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/zetatrack/internal/capture"
	"github.com/verte-zerg/zetatrack/internal/clock"
	"github.com/verte-zerg/zetatrack/internal/generator"
	"github.com/verte-zerg/zetatrack/internal/model"
	"github.com/verte-zerg/zetatrack/internal/notify"
	"github.com/verte-zerg/zetatrack/internal/sim"
	"github.com/verte-zerg/zetatrack/internal/stats"
)

var (
	simDuration  int
	simThink     time.Duration
	simHideEvery int
	simSeed      int64
	simSave      bool
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play a scripted game through the tracker without a browser",
		Args:  cobra.NoArgs,
		RunE:  runSimulateCmd,
	}
	cmd.Flags().IntVar(&simDuration, "duration", capture.DefaultTargetDuration, "game length in seconds")
	cmd.Flags().DurationVar(&simThink, "think", 2*time.Second, "time spent on each problem")
	cmd.Flags().IntVar(&simHideEvery, "hide-every", 0, "drop the page update after every Nth answer")
	cmd.Flags().Int64Var(&simSeed, "seed", 0, "problem generator seed (0 uses the clock)")
	cmd.Flags().BoolVar(&simSave, "save", false, "persist the session like a real game")
	return cmd
}

func runSimulateCmd(cmd *cobra.Command, _ []string) error {
	if simDuration <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	if simHideEvery < 0 {
		return fmt.Errorf("--hide-every must be >= 0")
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	gen := generator.New()
	if simSeed != 0 {
		gen = generator.NewSeeded(simSeed, generator.DefaultRanges)
	}
	game := sim.NewGame(gen, simDuration)
	clk := clock.Fake(time.Now())

	var saver capture.Saver = capture.SaverFunc(func(context.Context, model.Session) error { return nil })
	if simSave {
		saver = a.persister(false)
	}
	var last *capture.Outcome
	var mu sync.Mutex
	tracker := capture.NewTracker(capture.Options{
		Clock:  clk,
		Saver:  saver,
		Source: game,
		Logger: a.logger.Named("capture"),
		OnChange: func(status capture.Status) {
			if status.Last != nil {
				mu.Lock()
				last = status.Last
				mu.Unlock()
			}
		},
	})

	player := &sim.Player{Game: game, Sink: tracker, Clock: clk, Think: simThink, HideEvery: simHideEvery}
	playErr := player.Play(cmd.Context(), capture.DefaultGrace)
	tracker.Wait()
	if playErr != nil {
		return fmt.Errorf("simulation interrupted: %w", playErr)
	}

	mu.Lock()
	defer mu.Unlock()
	if last == nil {
		return fmt.Errorf("no session was finalized")
	}
	return printSimulation(cmd.OutOrStdout(), *last, simSave)
}

func printSimulation(w io.Writer, out capture.Outcome, save bool) error {
	status := "not saved (duration differs from target)"
	switch {
	case out.Err != nil:
		status = "save failed: " + out.Err.Error()
	case out.Persisted && save:
		status = "saved"
	case out.Persisted:
		status = "eligible for saving (use --save)"
	}
	if _, err := fmt.Fprintf(w, "%s\nStatus: %s\n\n", notify.FormatSummary(out.Session), status); err != nil {
		return err
	}
	stored := []model.StoredSession{{
		ID:        out.Session.ID,
		Score:     out.Session.Score,
		Timestamp: out.Session.EndedAt,
		Problems:  out.Session.Problems,
	}}
	return stats.RenderOperationTable(w, stats.OperationBreakdown(stored))
}

package main

import (
	"bufio"
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/zetatrack/internal/model"
	"github.com/verte-zerg/zetatrack/internal/stats"
	"github.com/verte-zerg/zetatrack/internal/statsui"
)

const recentLimit = 10

var (
	statsLocal       bool
	statsLast        int
	statsCurveWindow int
	statsPlain       bool
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().BoolVar(&statsLocal, "local", false, "read the local session cache instead of the remote store")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the interactive view")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow < 1 {
		return fmt.Errorf("--curve-window must be >= 1")
	}
	cfg := model.StatsConfig{
		Local:       statsLocal,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}

	a, err := openApp(cmd, !statsPlain)
	if err != nil {
		return err
	}
	defer a.Close()

	src, origin := a.sessionSource(cfg.Local)
	if statsPlain {
		ctx, cancel := withTimeout(cmd.Context())
		defer cancel()
		report, err := stats.BuildReport(ctx, src, cfg)
		if err != nil {
			return fmt.Errorf("failed to load %s sessions: %w", origin, err)
		}
		return renderPlain(cmd, report, cfg)
	}

	program := tea.NewProgram(statsui.NewModel(src, cfg, origin), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func (a *app) sessionSource(local bool) (stats.SessionSource, string) {
	if local {
		return stats.SourceFunc(func(ctx context.Context) ([]model.StoredSession, error) {
			return a.store.ListSessions(ctx, 0)
		}), "local"
	}
	return stats.SourceFunc(a.remote.ListSessions), "remote"
}

func renderPlain(cmd *cobra.Command, report stats.Report, cfg model.StatsConfig) error {
	w := bufio.NewWriter(cmd.OutOrStdout())
	if err := stats.RenderSummary(w, report.Quick); err != nil {
		return err
	}
	if len(report.Sessions) > 0 {
		if err := stats.RenderScoreCurve(w, report.Sessions, cfg.CurveWindow); err != nil {
			return err
		}
		if err := stats.RenderOperationTable(w, report.Operations); err != nil {
			return err
		}
		if len(report.Window) > 0 && len(report.Sessions) > cfg.CurveWindow {
			if _, err := fmt.Fprintf(w, "Last %d sessions\n", cfg.CurveWindow); err != nil {
				return err
			}
			if err := stats.RenderOperationTable(w, report.Window); err != nil {
				return err
			}
		}
		if err := stats.RenderRecent(w, report.Sessions, recentLimit); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}


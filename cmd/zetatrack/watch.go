package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/zetatrack/internal/browser"
	"github.com/verte-zerg/zetatrack/internal/capture"
	"github.com/verte-zerg/zetatrack/internal/clock"
	"github.com/verte-zerg/zetatrack/internal/tui"
)

const startTimeout = time.Minute

var (
	watchURL         string
	watchTarget      int
	watchGraceMs     int
	watchPollMs      int
	watchHeadless    bool
	watchDebuggerURL string
	watchChromeBin   string
	watchNoTUI       bool
	watchOffline     bool
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the game and record sessions (default)",
		Args:  cobra.NoArgs,
		RunE:  runWatchCmd,
	}
	addWatchFlags(cmd)
	return cmd
}

func addWatchFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&watchURL, "url", browser.DefaultURL, "game URL")
	cmd.Flags().IntVar(&watchTarget, "target-duration", capture.DefaultTargetDuration, "only save sessions of this length (seconds)")
	cmd.Flags().IntVar(&watchGraceMs, "grace-ms", int(capture.DefaultGrace.Milliseconds()), "delay after the countdown ends before saving")
	cmd.Flags().IntVar(&watchPollMs, "poll-ms", defaultPollMs, "page polling interval")
	cmd.Flags().BoolVar(&watchHeadless, "headless", false, "run Chrome without a window")
	cmd.Flags().StringVar(&watchDebuggerURL, "debugger-url", "", "attach to a running Chrome DevTools endpoint")
	cmd.Flags().StringVar(&watchChromeBin, "chrome-bin", "", "Chrome binary to launch")
	cmd.Flags().BoolVar(&watchNoTUI, "no-tui", false, "log sessions instead of showing the monitor")
	cmd.Flags().BoolVar(&watchOffline, "offline", false, "keep sessions in the local cache only")
}

func runWatchCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, !watchNoTUI)
	if err != nil {
		return err
	}
	defer a.Close()

	capCfg := captureConfig(cmd, a.cfg)
	if err := validateCaptureConfig(capCfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host := browser.New(capCfg, a.logger.Named("browser"))
	startCtx, cancelStart := context.WithTimeout(ctx, startTimeout)
	err = host.Start(startCtx)
	cancelStart()
	if err != nil {
		return fmt.Errorf("failed to open game: %w", err)
	}
	defer func() {
		if cerr := host.Close(); cerr != nil {
			a.logger.Warn("failed to close browser", zap.Error(cerr))
		}
	}()

	var program *tea.Program
	if !watchNoTUI {
		history, err := a.store.ListSessions(ctx, 0)
		if err != nil {
			a.logger.Warn("failed to load cached sessions", zap.Error(err))
		}
		program = tea.NewProgram(tui.NewModel(capCfg.URL, history), tea.WithAltScreen(), tea.WithContext(ctx))
	}

	logger := a.logger.Named("capture")
	tracker := capture.NewTracker(capture.Options{
		Clock:          clock.Real(),
		Saver:          a.persister(watchOffline),
		Source:         host,
		Logger:         logger,
		TargetDuration: capCfg.TargetDuration,
		Grace:          capCfg.Grace,
		OnChange: func(status capture.Status) {
			if program != nil {
				program.Send(tui.StatusMsg(status))
				return
			}
			logOutcome(logger, status.Last)
		},
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		err := host.Run(gctx, tracker)
		if err != nil && program != nil {
			program.Send(tui.ErrMsg{Err: err})
		}
		return err
	})
	g.Go(func() error {
		return a.keys.Watch(gctx)
	})
	if program != nil {
		g.Go(func() error {
			defer cancel()
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("failed to run TUI: %w", err)
			}
			return nil
		})
	} else {
		logErrf("Watching %s, press Ctrl+C to stop\n", capCfg.URL)
	}

	err = g.Wait()
	tracker.Wait()
	return err
}

func logOutcome(logger *zap.Logger, out *capture.Outcome) {
	if out == nil {
		return
	}
	fields := []zap.Field{
		zap.String("session", out.Session.ID),
		zap.Int("score", out.Session.Score),
		zap.Int("problems", len(out.Session.Problems)),
		zap.Intp("duration", out.Session.DetectedDurationSeconds),
		zap.Bool("persisted", out.Persisted),
	}
	if out.Err != nil {
		fields = append(fields, zap.Error(out.Err))
	}
	logger.Info("session finished", fields...)
}

// Package browser hosts the game page in Chrome and streams its changes to a sink.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/verte-zerg/zetatrack/internal/capture"
	"github.com/verte-zerg/zetatrack/internal/extract"
	"github.com/verte-zerg/zetatrack/internal/model"
)

const (
	DefaultURL          = "https://arithmetic.zetamac.com"
	DefaultPollInterval = 50 * time.Millisecond

	diagnosticsInterval = 2 * time.Second
	loadTimeout         = 30 * time.Second
	// Consecutive failed polls before the failure is logged at Warn.
	warnAfterFailures = 40
)

// ErrNotStarted is returned when the host is used before Start.
var ErrNotStarted = errors.New("browser not started")

// Sink consumes page changes. *capture.Tracker satisfies it.
type Sink interface {
	Observe(snap extract.Snapshot)
	Input(value string)
	Status() capture.Status
}

// evaluator runs a script in the game page and returns its JSON result.
type evaluator interface {
	Eval(ctx context.Context, js string, args ...interface{}) ([]byte, error)
}

type pageEvaluator struct {
	page *rod.Page
}

func (p pageEvaluator) Eval(ctx context.Context, js string, args ...interface{}) ([]byte, error) {
	return evaluate(ctx, p.page, js, args...)
}

// Host owns one Chrome page showing the game.
type Host struct {
	cfg    model.CaptureConfig
	logger *zap.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	eval     evaluator
}

// New returns a host for cfg. Nothing is launched until Start.
func New(cfg model.CaptureConfig, logger *zap.Logger) *Host {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{cfg: cfg, logger: logger}
}

// Start connects to the configured debugger or launches Chrome, then opens the game.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.page != nil {
		return nil
	}

	controlURL := h.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(h.cfg.Headless)
		if h.cfg.ChromeBin != "" {
			l = l.Bin(h.cfg.ChromeBin)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("failed to launch chrome: %w", err)
		}
		h.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		h.killLauncher()
		return fmt.Errorf("failed to connect to chrome: %w", err)
	}
	page, err := b.Page(proto.TargetCreateTarget{URL: h.cfg.URL})
	if err != nil {
		h.closeBrowser(b)
		return fmt.Errorf("failed to open %s: %w", h.cfg.URL, err)
	}
	if err := page.Timeout(loadTimeout).WaitLoad(); err != nil {
		h.logger.Warn("game page did not finish loading", zap.String("url", h.cfg.URL), zap.Error(err))
	}
	h.browser = b
	h.page = page
	h.eval = pageEvaluator{page: page}
	h.logger.Info("game page opened", zap.String("url", h.cfg.URL), zap.Bool("attached", h.cfg.DebuggerURL != ""))
	return nil
}

// Close releases the page and any browser the host launched.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	if h.page != nil {
		if cerr := h.page.Close(); cerr != nil {
			err = cerr
		}
		h.page = nil
	}
	h.eval = nil
	if h.browser != nil {
		if h.launcher != nil {
			h.closeBrowser(h.browser)
		}
		h.browser = nil
	}
	return err
}

func (h *Host) closeBrowser(b *rod.Browser) {
	if cerr := b.Close(); cerr != nil {
		// Best-effort browser close.
		_ = cerr
	}
	h.killLauncher()
}

func (h *Host) killLauncher() {
	if h.launcher != nil {
		h.launcher.Kill()
		h.launcher = nil
	}
}

func (h *Host) currentPage() (*rod.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.page == nil {
		return nil, ErrNotStarted
	}
	return h.page, nil
}

func (h *Host) currentEvaluator() (evaluator, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.eval == nil {
		return nil, ErrNotStarted
	}
	return h.eval, nil
}

// Snapshot reads the visible page state.
func (h *Host) Snapshot(ctx context.Context) (extract.Snapshot, error) {
	ev, err := h.currentEvaluator()
	if err != nil {
		return extract.Snapshot{}, err
	}
	return h.snapshot(ctx, ev)
}

func (h *Host) snapshot(ctx context.Context, ev evaluator) (extract.Snapshot, error) {
	raw, err := ev.Eval(ctx, snapshotJS, extract.CountdownSelectors)
	if err != nil {
		return extract.Snapshot{}, fmt.Errorf("failed to read page: %w", err)
	}
	return decodeSnapshot(raw)
}

// Run polls the page until ctx is done. Each poll delivers queued input values,
// one Observe when the page changed, and the current answer field value.
// A failed poll is logged and retried on the next tick.
func (h *Host) Run(ctx context.Context, sink Sink) error {
	ev, err := h.currentEvaluator()
	if err != nil {
		return err
	}
	if err := h.install(ctx, ev); err != nil {
		// The next drain sees an unhooked page and installs again.
		h.logger.Debug("initial hook install failed", zap.Error(err))
	}

	poll := time.NewTicker(h.cfg.PollInterval)
	defer poll.Stop()
	diag := time.NewTicker(diagnosticsInterval)
	defer diag.Stop()

	failures := 0
	pending := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-diag.C:
			if sink.Status().Phase != capture.Idle {
				h.logDiagnostics(ctx, ev)
			}
		case <-poll.C:
			err := h.drain(ctx, ev, sink, &pending)
			if err == nil {
				failures = 0
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if failures == warnAfterFailures {
				h.logger.Warn("page polling keeps failing", zap.Int("failures", failures), zap.Error(err))
			} else {
				h.logger.Debug("page poll failed", zap.Error(err))
			}
		}
	}
}

func (h *Host) install(ctx context.Context, ev evaluator) error {
	if _, err := ev.Eval(ctx, installJS); err != nil {
		return fmt.Errorf("failed to install page hooks: %w", err)
	}
	h.logger.Debug("page hooks installed")
	return nil
}

// drain delivers one batch of page events. A change whose snapshot could not be
// read stays pending and is observed on a later poll.
func (h *Host) drain(ctx context.Context, ev evaluator, sink Sink, pending *bool) error {
	raw, err := ev.Eval(ctx, drainJS)
	if err != nil {
		return fmt.Errorf("failed to read page events: %w", err)
	}
	events, hooked, err := decodeDrain(raw)
	if err != nil {
		return err
	}
	if !hooked {
		// The page navigated; hook the new document and treat it as changed.
		if err := h.install(ctx, ev); err != nil {
			return err
		}
		events.Mutated = true
	}
	for _, v := range events.Inputs {
		sink.Input(v)
	}
	if events.Mutated || *pending {
		snap, err := h.snapshot(ctx, ev)
		if err != nil {
			*pending = true
			return err
		}
		*pending = false
		sink.Observe(snap)
	}
	if events.Input != "" {
		sink.Input(events.Input)
	}
	return nil
}

func (h *Host) logDiagnostics(ctx context.Context, ev evaluator) {
	raw, err := ev.Eval(ctx, diagnosticsJS)
	if err != nil {
		h.logger.Debug("input field diagnostics failed", zap.Error(err))
		return
	}
	var d wireDiagnostics
	if err := decodeJSON(raw, &d); err != nil || !d.Found {
		h.logger.Debug("no input field found")
		return
	}
	h.logger.Debug("input field",
		zap.String("value", d.Value),
		zap.String("type", d.Type),
		zap.Bool("focused", d.Focused))
}

func evaluate(ctx context.Context, page *rod.Page, js string, args ...interface{}) ([]byte, error) {
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, err
	}
	if res == nil || res.Value.Nil() {
		return nil, nil
	}
	return res.Value.MarshalJSON()
}

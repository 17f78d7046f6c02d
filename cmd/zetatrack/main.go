// Package main provides the CLI entrypoint for zetatrack.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/zetatrack/internal/auth"
	"github.com/verte-zerg/zetatrack/internal/browser"
	"github.com/verte-zerg/zetatrack/internal/capture"
	"github.com/verte-zerg/zetatrack/internal/config"
	"github.com/verte-zerg/zetatrack/internal/firestore"
	"github.com/verte-zerg/zetatrack/internal/logging"
	"github.com/verte-zerg/zetatrack/internal/model"
	"github.com/verte-zerg/zetatrack/internal/notify"
	"github.com/verte-zerg/zetatrack/internal/store"
)

const (
	defaultCurveWindow = 20
	defaultPollMs      = 50
)

var logLevel string

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "zetatrack",
		Short:         "Track arithmetic game sessions",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runWatchCmd,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	addWatchFlags(rootCmd)

	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newSimulateCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

// app holds the collaborators shared by every command.
type app struct {
	cfg    config.FileConfig
	logger *zap.Logger
	store  *store.Store
	keys   *config.KeySource
	creds  *auth.Manager
	remote *firestore.Client
}

// openApp loads the config and opens the store. When toFile is set, logs go to the
// configured log file so they do not corrupt a full-screen UI.
func openApp(cmd *cobra.Command, toFile bool) (*app, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts := logging.Options{Level: logLevel}
	if !cmd.Flags().Changed("log-level") && fileCfg.Log.Level != nil {
		opts.Level = *fileCfg.Log.Level
	}
	if fileCfg.Log.File != nil {
		opts.File = *fileCfg.Log.File
	} else if toFile {
		opts.File = config.DefaultLogPath()
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	keyPath := config.DefaultAPIKeyPath()
	inlineKey := ""
	if fileCfg.Identity.APIKeyFile != nil {
		keyPath = *fileCfg.Identity.APIKeyFile
	}
	if fileCfg.Identity.APIKey != nil {
		inlineKey = *fileCfg.Identity.APIKey
	}
	keys := config.NewKeySource(inlineKey, keyPath, logger.Named("config"))

	identity := auth.NewIdentityClient()
	if v := fileCfg.Identity.SignupURL; v != nil {
		identity.SignupURL = *v
	}
	if v := fileCfg.Identity.TokenURL; v != nil {
		identity.TokenURL = *v
	}
	creds := auth.NewManager(auth.Options{
		KV:       st,
		Keys:     keys,
		Identity: identity,
		Logger:   logger.Named("auth"),
	})

	remoteOpts := firestore.Options{Creds: creds, Logger: logger.Named("firestore")}
	if v := fileCfg.Remote.Project; v != nil {
		remoteOpts.Project = *v
	}
	if v := fileCfg.Remote.BaseURL; v != nil {
		remoteOpts.BaseURL = *v
	}
	if v := fileCfg.Remote.PageSize; v != nil {
		remoteOpts.PageSize = *v
	}

	return &app{
		cfg:    fileCfg,
		logger: logger,
		store:  st,
		keys:   keys,
		creds:  creds,
		remote: firestore.New(remoteOpts),
	}, nil
}

func (a *app) Close() {
	if cerr := a.store.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
	// Syncing stderr fails on some terminals.
	_ = a.logger.Sync()
}

// notifier returns the Telegram notifier when configured, otherwise a no-op.
func (a *app) notifier() notify.Notifier {
	token, chat := a.cfg.Notify.TelegramToken, a.cfg.Notify.TelegramChat
	if token == nil || *token == "" || chat == nil {
		return notify.Nop{}
	}
	tg, err := notify.NewTelegram(*token, *chat, a.logger.Named("notify"))
	if err != nil {
		a.logger.Warn("telegram notifications disabled", zap.Error(err))
		return notify.Nop{}
	}
	return tg
}

func (a *app) persister(offline bool) *persister {
	p := &persister{
		local:    a.store,
		creds:    a.creds,
		notifier: a.notifier(),
		logger:   a.logger.Named("persist"),
	}
	if !offline {
		p.remote = a.remote
	}
	return p
}

// captureConfig merges capture flags over the config file values.
func captureConfig(cmd *cobra.Command, fileCfg config.FileConfig) model.CaptureConfig {
	c := fileCfg.Capture
	applyStringConfig(cmd, "url", &watchURL, c.URL)
	applyIntConfig(cmd, "target-duration", &watchTarget, c.TargetDuration)
	applyIntConfig(cmd, "grace-ms", &watchGraceMs, c.GraceMs)
	applyIntConfig(cmd, "poll-ms", &watchPollMs, c.PollMs)
	applyBoolConfig(cmd, "headless", &watchHeadless, c.Headless)
	applyStringConfig(cmd, "debugger-url", &watchDebuggerURL, c.DebuggerURL)
	applyStringConfig(cmd, "chrome-bin", &watchChromeBin, c.ChromeBin)
	return model.CaptureConfig{
		URL:            watchURL,
		TargetDuration: watchTarget,
		Grace:          time.Duration(watchGraceMs) * time.Millisecond,
		PollInterval:   time.Duration(watchPollMs) * time.Millisecond,
		Headless:       watchHeadless,
		DebuggerURL:    watchDebuggerURL,
		ChromeBin:      watchChromeBin,
	}
}

func validateCaptureConfig(cfg model.CaptureConfig) error {
	if cfg.TargetDuration <= 0 {
		return fmt.Errorf("--target-duration must be > 0")
	}
	if cfg.Grace <= 0 {
		return fmt.Errorf("--grace-ms must be > 0")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("--poll-ms must be > 0")
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# zetatrack configuration
# Uncomment a value to enable it. CLI flags override config values.

[capture]
# url = %q
# target-duration = %d       # Only sessions of this length are saved
# grace-ms = %d              # Wait after the countdown ends before saving
# poll-ms = %d                 # Page polling interval
# headless = false
# debugger-url = ""           # Attach to a running Chrome instead of launching one
# chrome-bin = ""

[identity]
# api-key = ""                # Overridden by $%s
# api-key-file = %q
# signup-url = %q
# token-url = %q

[remote]
# project = %q
# base-url = %q
# page-size = %d

[notify]
# telegram-token = ""
# telegram-chat = 0

[log]
# level = "info"
# file = %q
`,
		browser.DefaultURL,
		capture.DefaultTargetDuration,
		capture.DefaultGrace.Milliseconds(),
		defaultPollMs,
		config.APIKeyEnv,
		config.DefaultAPIKeyPath(),
		auth.DefaultSignupURL,
		auth.DefaultTokenURL,
		firestore.DefaultProject,
		firestore.DefaultBaseURL,
		firestore.DefaultPageSize,
		config.DefaultLogPath(),
	)
}

// withTimeout bounds one-shot remote calls made by commands.
func withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, time.Minute)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

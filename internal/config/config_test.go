package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Capture.URL != nil {
		t.Fatalf("expected empty config")
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[capture]
url = "https://arithmetic.zetamac.com/game"
target-duration = 120
headless = true

[identity]
api-key = "abc"

[remote]
project = "demo"
page-size = 50

[notify]
telegram-chat = -100123

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Capture.URL == nil || *cfg.Capture.URL != "https://arithmetic.zetamac.com/game" {
		t.Fatalf("unexpected url: %v", cfg.Capture.URL)
	}
	if cfg.Capture.TargetDuration == nil || *cfg.Capture.TargetDuration != 120 {
		t.Fatalf("unexpected target duration: %v", cfg.Capture.TargetDuration)
	}
	if cfg.Capture.Headless == nil || !*cfg.Capture.Headless {
		t.Fatalf("expected headless")
	}
	if cfg.Capture.PollMs != nil {
		t.Fatalf("expected unset poll-ms")
	}
	if cfg.Identity.APIKey == nil || *cfg.Identity.APIKey != "abc" {
		t.Fatalf("unexpected api key: %v", cfg.Identity.APIKey)
	}
	if cfg.Remote.PageSize == nil || *cfg.Remote.PageSize != 50 {
		t.Fatalf("unexpected page size: %v", cfg.Remote.PageSize)
	}
	if cfg.Notify.TelegramChat == nil || *cfg.Notify.TelegramChat != -100123 {
		t.Fatalf("unexpected chat: %v", cfg.Notify.TelegramChat)
	}
	if cfg.Log.Level == nil || *cfg.Log.Level != "debug" {
		t.Fatalf("unexpected level: %v", cfg.Log.Level)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[capture\nurl="), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestKeySourcePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api_key")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	t.Setenv(APIKeyEnv, "")

	if got, _ := NewKeySource("", path, nil).APIKey(); got != "from-file" {
		t.Fatalf("expected from-file, got %q", got)
	}
	if got, _ := NewKeySource("inline", path, nil).APIKey(); got != "inline" {
		t.Fatalf("expected inline, got %q", got)
	}
	t.Setenv(APIKeyEnv, "from-env")
	if got, _ := NewKeySource("inline", path, nil).APIKey(); got != "from-env" {
		t.Fatalf("expected from-env, got %q", got)
	}
}

func TestKeySourceUnavailable(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	_, err := NewKeySource("", filepath.Join(t.TempDir(), "absent"), nil).APIKey()
	if !errors.Is(err, ErrAPIKeyUnavailable) {
		t.Fatalf("expected ErrAPIKeyUnavailable, got %v", err)
	}
}

func TestKeySourceWatchPicksUpNewFile(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	path := filepath.Join(t.TempDir(), "api_key")
	src := NewKeySource("", path, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Fatalf("watch: %v", err)
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := os.WriteFile(path, []byte("fresh-key"), 0o600); err != nil {
			t.Fatalf("write key: %v", err)
		}
		if got, err := src.APIKey(); err == nil && got == "fresh-key" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("expected watcher to load the new key")
}

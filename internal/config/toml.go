// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Capture  CaptureConfig  `toml:"capture"`
	Identity IdentityConfig `toml:"identity"`
	Remote   RemoteConfig   `toml:"remote"`
	Notify   NotifyConfig   `toml:"notify"`
	Log      LogConfig      `toml:"log"`
}

// CaptureConfig maps game capture settings.
type CaptureConfig struct {
	URL            *string `toml:"url"`
	TargetDuration *int    `toml:"target-duration"`
	GraceMs        *int    `toml:"grace-ms"`
	PollMs         *int    `toml:"poll-ms"`
	Headless       *bool   `toml:"headless"`
	DebuggerURL    *string `toml:"debugger-url"`
	ChromeBin      *string `toml:"chrome-bin"`
}

// IdentityConfig maps identity service settings.
type IdentityConfig struct {
	APIKey     *string `toml:"api-key"`
	APIKeyFile *string `toml:"api-key-file"`
	SignupURL  *string `toml:"signup-url"`
	TokenURL   *string `toml:"token-url"`
}

// RemoteConfig maps remote document store settings.
type RemoteConfig struct {
	Project  *string `toml:"project"`
	BaseURL  *string `toml:"base-url"`
	PageSize *int    `toml:"page-size"`
}

// NotifyConfig maps Telegram notification settings.
type NotifyConfig struct {
	TelegramToken *string `toml:"telegram-token"`
	TelegramChat  *int64  `toml:"telegram-chat"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

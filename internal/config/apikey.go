package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// APIKeyEnv overrides every other API key source.
const APIKeyEnv = "ZETATRACK_API_KEY"

// ErrAPIKeyUnavailable is returned when no API key is configured.
var ErrAPIKeyUnavailable = errors.New("API key unavailable")

// KeySource resolves the identity service API key from the environment,
// the config file, or a key file, in that order.
type KeySource struct {
	inline string
	path   string
	logger *zap.Logger

	mu     sync.RWMutex
	cached string
}

// NewKeySource builds a key source. The key file is read immediately.
func NewKeySource(inline, path string, logger *zap.Logger) *KeySource {
	if logger == nil {
		logger = zap.NewNop()
	}
	k := &KeySource{inline: strings.TrimSpace(inline), path: path, logger: logger}
	k.reload()
	return k
}

// APIKey returns the current API key.
func (k *KeySource) APIKey() (string, error) {
	if v := strings.TrimSpace(os.Getenv(APIKeyEnv)); v != "" {
		return v, nil
	}
	if k.inline != "" {
		return k.inline, nil
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.cached == "" {
		return "", ErrAPIKeyUnavailable
	}
	return k.cached, nil
}

func (k *KeySource) reload() {
	if k.path == "" {
		return
	}
	data, err := os.ReadFile(k.path)
	value := ""
	switch {
	case err == nil:
		value = strings.TrimSpace(string(data))
	case os.IsNotExist(err):
	default:
		k.logger.Warn("failed to read API key file", zap.String("path", k.path), zap.Error(err))
		return
	}
	k.mu.Lock()
	changed := value != k.cached
	k.cached = value
	k.mu.Unlock()
	if changed {
		k.logger.Info("API key file loaded", zap.String("path", k.path), zap.Bool("present", value != ""))
	}
}

// Watch reloads the key file whenever it changes until ctx is done.
// The parent directory is watched so editors that replace the file are seen.
func (k *KeySource) Watch(ctx context.Context) error {
	if k.path == "" {
		<-ctx.Done()
		return nil
	}
	dir := filepath.Dir(k.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		if cerr := watcher.Close(); cerr != nil {
			// Best-effort watcher close.
			_ = cerr
		}
	}()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(k.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				k.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			k.logger.Warn("key file watcher error", zap.Error(err))
		}
	}
}

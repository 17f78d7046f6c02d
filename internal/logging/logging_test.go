package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", name, err)
		}
		if got != want {
			t.Fatalf("%q: expected %s, got %s", name, want, got)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "zetatrack.log")
	logger, err := New(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("session persisted", zap.Int("score", 42))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	if strings.Contains(text, "hidden") {
		t.Fatalf("expected debug line filtered, got %s", text)
	}
	if !strings.Contains(text, `"score":42`) {
		t.Fatalf("expected structured field, got %s", text)
	}
}

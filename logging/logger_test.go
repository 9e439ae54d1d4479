package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dispomed/dispomed-api/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGetConsoleLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		env      config.Environment
		level    string
		verbose  bool
		expected slog.Level
	}{
		{"dev defaults to info", config.EnvDevelopment, "", false, slog.LevelInfo},
		{"test quiet defaults to error", config.EnvTest, "", false, slog.LevelError},
		{"test verbose defaults to info", config.EnvTest, "", true, slog.LevelInfo},
		{"prod defaults to warn", config.EnvProduction, "", false, slog.LevelWarn},
		{"staging defaults to warn", config.EnvStaging, "", false, slog.LevelWarn},
		{"prod with debug override", config.EnvProduction, "debug", false, slog.LevelDebug},
		{"dev with error override", config.EnvDevelopment, "error", false, slog.LevelError},
		{"test ignores override", config.EnvTest, "debug", false, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetConsoleLogLevel(tt.env, tt.level, tt.verbose); got != tt.expected {
				t.Errorf("GetConsoleLogLevel(%v, %q, %v) = %v, want %v", tt.env, tt.level, tt.verbose, got, tt.expected)
			}
		})
	}
}

func TestGetFileLogLevel(t *testing.T) {
	if got := GetFileLogLevel(); got != slog.LevelDebug {
		t.Errorf("GetFileLogLevel() = %v, want %v", got, slog.LevelDebug)
	}
}

func TestNewWritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, closer, err := New(Options{
		Dir:            dir,
		Env:            config.EnvProduction,
		RetentionWeeks: 2,
		MaxFileSize:    1 << 20,
		Console:        &console,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("catalog refreshed", "classes", 14)
	logger.Warn("slow query", "query", "get_incidents")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if strings.Contains(console.String(), "catalog refreshed") {
		t.Error("Expected info to be filtered from the prod console")
	}
	if !strings.Contains(console.String(), "slow query") {
		t.Errorf("Expected warn on the console, got: %s", console.String())
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "app-*.log"))
	if len(matches) != 1 {
		t.Fatalf("Expected one log file, got %v", matches)
	}
	content, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"catalog refreshed"`) || !strings.Contains(string(content), `"classes":14`) {
		t.Errorf("Expected JSON info record in file, got: %s", content)
	}
}

func TestNewWithoutDirIsConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := New(Options{Env: config.EnvDevelopment, Console: &console})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closer.Close()

	logger.Info("hello")
	if !strings.Contains(console.String(), "hello") {
		t.Errorf("Expected console output, got: %s", console.String())
	}
}

func TestResetForTestRoutesFacade(t *testing.T) {
	dir := t.TempDir()
	ResetForTest(t, dir, config.EnvTest, "", 1, 1<<20)

	Debug("debug line")
	Info("info line")
	Warn("warn line")
	Error("error line")

	matches, _ := filepath.Glob(filepath.Join(dir, "app-*.log"))
	if len(matches) != 1 {
		t.Fatalf("Expected one log file, got %v", matches)
	}
	content, _ := os.ReadFile(matches[0])
	for _, line := range []string{"debug line", "info line", "warn line", "error line"} {
		if !strings.Contains(string(content), line) {
			t.Errorf("Expected %q in log file, got: %s", line, content)
		}
	}
}

func TestMultiHandlerWithAttrsAndGroup(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}

	logger := slog.New(h).With("component", "scheduler").WithGroup("refresh")
	logger.Info("started", "attempt", 1)

	if !strings.Contains(a.String(), "component=scheduler") || !strings.Contains(a.String(), "refresh.attempt=1") {
		t.Errorf("Unexpected text output: %s", a.String())
	}
	if b.Len() != 0 {
		t.Errorf("Expected the error-level handler to skip info, got: %s", b.String())
	}

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected debug to be disabled on both handlers")
	}
}

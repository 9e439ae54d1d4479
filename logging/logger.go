// Package logging sets up structured logging for the dispomed API: text on
// the console, JSON in weekly rotating files, and a package-level facade the
// rest of the code logs through.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/dispomed/dispomed-api/config"
)

// Options configures InitLogger
type Options struct {
	Dir            string
	Env            config.Environment
	Level          string
	Verbose        bool
	RetentionWeeks int
	MaxFileSize    int64
	Console        io.Writer
}

var (
	mu      sync.RWMutex
	current *slog.Logger
	closer  io.Closer
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel picks the console level for env. An explicit level wins
// except under test, where the console stays quiet unless verbose is set.
func GetConsoleLogLevel(env config.Environment, level string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}
	if level != "" {
		return parseLogLevel(level)
	}
	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel is the level of the JSON file handler
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

// New builds a logger writing to opts.Console and, when opts.Dir is set, to a
// rotating file. The returned closer releases the file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})

	if opts.Dir == "" {
		return slog.New(consoleHandler), io.NopCloser(nil), nil
	}

	retention := opts.RetentionWeeks
	if retention <= 0 {
		retention = 4
	}
	rw, err := NewRotatingWriter(opts.Dir, retention, opts.MaxFileSize)
	if err != nil {
		return slog.New(consoleHandler), io.NopCloser(nil), err
	}

	fileHandler := slog.NewJSONHandler(rw, &slog.HandlerOptions{Level: GetFileLogLevel()})
	return slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}}), rw, nil
}

// InitLogger installs the global logger. When the log directory cannot be
// used it falls back to console only and reports the error.
func InitLogger(opts Options) error {
	logger, c, err := New(opts)

	mu.Lock()
	prev := closer
	current = logger
	closer = c
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	slog.SetDefault(logger)

	if err != nil {
		logger.Error("File logging disabled", "dir", opts.Dir, "error", err)
	}
	return err
}

// Close flushes and releases the global log file
func Close() error {
	mu.Lock()
	c := closer
	closer = nil
	mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close()
}

// ResetForTest installs a logger writing into dir and restores the previous
// one when the test ends.
func ResetForTest(t testing.TB, dir string, env config.Environment, level string, retentionWeeks int, maxSize int64) {
	t.Helper()

	mu.RLock()
	prevLogger, prevCloser := current, closer
	mu.RUnlock()

	logger, c, err := New(Options{Dir: dir, Env: env, Level: level, RetentionWeeks: retentionWeeks, MaxFileSize: maxSize})
	if err != nil {
		t.Fatalf("failed to init test logger: %v", err)
	}

	mu.Lock()
	current, closer = logger, c
	mu.Unlock()

	t.Cleanup(func() {
		_ = c.Close()
		mu.Lock()
		current, closer = prevLogger, prevCloser
		mu.Unlock()
	})
}

// Logger returns the global logger, or a stderr logger before InitLogger
func Logger() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	return fallback
}

var fallback = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func Info(msg string, args ...any) { Logger().Info(msg, args...) }

func Warn(msg string, args ...any) { Logger().Warn(msg, args...) }

func Error(msg string, args ...any) { Logger().Error(msg, args...) }

func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }

// multiHandler fans records out to every handler that accepts their level
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

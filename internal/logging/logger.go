// Package logging wraps log/slog with the console's defaults.
//
// Text output goes through charmbracelet/log, which implements slog.Handler;
// JSON output uses the stdlib handler so log shippers see plain records.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
)

// Level represents log severity levels.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Logger wraps slog with a dynamically adjustable level.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// Config holds logger configuration.
type Config struct {
	Level  Level
	Output io.Writer
	JSON   bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// New creates a new Logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(cfg.Level)

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{Level: levelVar})
	} else {
		console := clog.NewWithOptions(cfg.Output, clog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Level:           clog.DebugLevel,
		})
		handler = &levelGate{Handler: console, level: levelVar}
	}

	return &Logger{Logger: slog.New(handler), level: levelVar}
}

// levelGate applies the shared LevelVar in front of a handler whose own
// level is fixed at debug.
type levelGate struct {
	slog.Handler
	level *slog.LevelVar
}

func (g *levelGate) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= g.level.Level() && g.Handler.Enabled(ctx, l)
}

func (g *levelGate) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelGate{Handler: g.Handler.WithAttrs(attrs), level: g.level}
}

func (g *levelGate) WithGroup(name string) slog.Handler {
	return &levelGate{Handler: g.Handler.WithGroup(name), level: g.level}
}

// Default returns the process logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(DefaultConfig())
	}
	return defaultLogger
}

// SetDefault replaces the process logger and the slog default.
func SetDefault(l *Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	slog.SetDefault(l.Logger)
}

// SetLevel changes the log level dynamically.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level)
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	return l.level.Level()
}

// WithComponent returns a logger with a component field.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name), level: l.level}
}

// ParseLevel maps a config string onto a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return New(Config{Level: LevelError + 1, Output: io.Discard, JSON: true})
}

// WithComponent returns a component-scoped logger from the default logger.
func WithComponent(name string) *Logger {
	return Default().WithComponent(name)
}

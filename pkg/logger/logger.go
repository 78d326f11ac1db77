// Package logger глобальный slog логгер сервисов и логгер запроса в контексте.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"siting/pkg/config"
)

// Log глобальный логгер. До Init молчит, поэтому пакеты движка
// работают в тестах без настройки.
var Log = slog.New(slog.DiscardHandler)

const defaultLogFile = "logs/siting.log"

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	Output     string // stdout, stderr, file
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // дни
	Compress   bool
}

func FromConfig(c config.LogConfig) Config {
	return Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// Init json в stdout с заданным уровнем
func Init(level string) {
	_ = InitWithConfig(Config{Level: level})
}

// InitWithConfig заменяет Log. Если файл лога недоступен, пишет в stdout
// и возвращает причину.
func InitWithConfig(cfg Config) error {
	w, err := output(cfg)
	Log = slog.New(newHandler(w, cfg))
	return err
}

func output(cfg Config) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		path := cfg.FilePath
		if path == "" {
			path = defaultLogFile
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return os.Stdout, fmt.Errorf("log dir: %w", err)
		}
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}, nil
	default:
		return os.Stdout, fmt.Errorf("unknown log output %q", cfg.Output)
	}
}

func newHandler(w io.Writer, cfg Config) slog.Handler {
	lvl := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// parseLevel понимает и смещения вида "warn+2"; мусор даёт info
func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type ctxKey struct{}

func ContextWithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext логгер запроса, иначе Log
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return Log
}

func WithContext(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

// WithComponent для этапов движка без контекста запроса
func WithComponent(component string) *slog.Logger {
	return Log.With("component", component)
}

func Info(msg string, args ...any) { Log.Info(msg, args...) }

func Warn(msg string, args ...any) { Log.Warn(msg, args...) }

// Fatal пишет error и завершает процесс с кодом 1
func Fatal(msg string, args ...any) {
	Log.Error(msg, args...)
	os.Exit(1)
}

package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Level  string
	Format string // "console", "text", "json", "zap"
	Output io.Writer
}

var (
	once sync.Once
	lg   *slog.Logger
)

// Init installs the process-wide logger. Only the first call has effect.
func Init(cfg Config) {
	once.Do(func() {
		lg = slog.New(newHandler(cfg))
		slog.SetDefault(lg)
	})
}

func L() *slog.Logger {
	if lg == nil {
		Init(Config{Level: "debug", Format: "console"})
	}
	return lg
}

// OpenOutput opens path for appending, creating parent directories. An empty
// path means stderr.
func OpenOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stderr}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func newHandler(cfg Config) slog.Handler {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	level := parseLevel(cfg.Level)
	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	case "text":
		return slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	case "zap":
		return newZapHandler(out, level)
	default:
		return &consoleHandler{w: out, level: level, mu: &sync.Mutex{}}
	}
}

func parseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// consoleHandler outputs human-friendly log lines:
//
//	12:00:00 INFO  Diver crossed water surface  frame=86 submerged=true
type consoleHandler struct {
	w     io.Writer
	mu    *sync.Mutex
	level slog.Level
	attrs []slog.Attr
	group string
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Time.Format(time.TimeOnly))
	sb.WriteByte(' ')
	sb.WriteString(levelTag(r.Level))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)

	for _, a := range h.attrs {
		sb.WriteString(formatAttr(h.group, a))
	}
	r.Attrs(func(a slog.Attr) bool {
		sb.WriteString(formatAttr(h.group, a))
		return true
	})
	sb.WriteByte('\n')

	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &consoleHandler{
		w:     h.w,
		mu:    h.mu,
		level: h.level,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
		group: h.group,
	}
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	prefix := name
	if h.group != "" {
		prefix = h.group + "." + name
	}
	return &consoleHandler{
		w:     h.w,
		mu:    h.mu,
		level: h.level,
		attrs: append([]slog.Attr{}, h.attrs...),
		group: prefix,
	}
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN "
	case l >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}

func formatAttr(group string, a slog.Attr) string {
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	return fmt.Sprintf("  %s=%v", key, a.Value)
}

package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// Setup initializes the global logger with the JSON handler on stdout.
// Only the first call has any effect; later calls are ignored.
func Setup(level string) {
	SetupWith(level, "json", os.Stdout)
}

// SetupWith is Setup with an explicit format ("json" or "text") and writer.
// An unknown level falls back to INFO, an unknown format to JSON.
func SetupWith(level, format string, w io.Writer) {
	once.Do(func() {
		opts := &slog.HandlerOptions{
			Level: parseLevel(level),
		}

		var handler slog.Handler
		if strings.EqualFold(format, "text") {
			handler = slog.NewTextHandler(w, opts)
		} else {
			handler = slog.NewJSONHandler(w, opts)
		}
		logger = slog.New(handler)
		slog.SetDefault(logger)
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	if logger == nil {
		Setup("INFO")
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithAction returns l with the action field set. A nil l uses the global logger.
func WithAction(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Get()
	}
	return l.With(slog.String("action", name))
}

// WithMessage returns l with the message_id field set, or l unchanged when id
// is empty. A nil l uses the global logger.
func WithMessage(l *slog.Logger, id string) *slog.Logger {
	if l == nil {
		l = Get()
	}
	if id == "" {
		return l
	}
	return l.With(slog.String("message_id", id))
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

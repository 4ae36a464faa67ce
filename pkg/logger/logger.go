package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats accepted by New
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Default is the process-wide logger used by the package helpers
var Default = New(FormatText, "info", os.Stderr)

// ParseLevel maps a level name to a slog level. ok is false for unknown
// names, which map to info.
func ParseLevel(name string) (level slog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// New creates a logger writing format ("text" or "json") to w. Any
// format other than json produces text.
func New(format, level string, w io.Writer) *slog.Logger {
	lvl, _ := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetDefault replaces Default and the slog default
func SetDefault(l *slog.Logger) {
	Default = l
	slog.SetDefault(l)
}

// ForRun scopes Default to a generation run
func ForRun(runID string) *slog.Logger {
	return Default.With("run_id", runID)
}

func Debug(msg string, args ...any) { Default.Debug(msg, args...) }
func Info(msg string, args ...any)  { Default.Info(msg, args...) }
func Warn(msg string, args ...any)  { Default.Warn(msg, args...) }
func Error(msg string, args ...any) { Default.Error(msg, args...) }

// With returns Default with additional attributes
func With(args ...any) *slog.Logger {
	return Default.With(args...)
}

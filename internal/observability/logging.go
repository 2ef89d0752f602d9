// Package observability provides the structured logging, metrics, and
// tracing this repository's ambient stack uses, scoped to the task-graph
// concerns this repository actually has: task correlation instead of
// channel/session/user correlation, and an in-process span logger instead
// of an OTLP exporter.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// ContextKey is the type for context keys carried through logging and
// tracing calls.
type ContextKey string

const (
	// RequestIDKey correlates one HTTP API request across its log lines.
	RequestIDKey ContextKey = "request_id"
	// TaskIDKey correlates one graph task's Runner activity across its log
	// lines.
	TaskIDKey ContextKey = "task_id"
)

// DefaultRedactPatterns contains regex patterns for common secret shapes.
var DefaultRedactPatterns = []string{
	`(?i)(api[_-]?key|apikey)[\s:=]+["\']?([a-zA-Z0-9_\-]{16,})["\']?`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-\.]{16,})`,
	`(?i)(secret|password|passwd|pwd)[\s:=]+["\']?([^\s"']{8,})["\']?`,
	`sk-ant-[a-zA-Z0-9_-]{95,}`,
	`sk-[a-zA-Z0-9]{48,}`,
	`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,
	`(?i)(secret|key|token)[\s:=]+["\']?([a-fA-F0-9]{32,})["\']?`,
}

// LogConfig configures NewLogger.
type LogConfig struct {
	// Level is "debug", "info", "warn", or "error". Defaults to "info".
	Level string
	// Format is "json" or "text". Defaults to "json".
	Format string
	// Output overrides the log writer. Defaults to os.Stdout when both
	// Output and RotatePath are empty.
	Output io.Writer
	// RotatePath, when set, writes logs to a rotating file via lumberjack
	// instead of Output.
	RotatePath    string
	RotateMaxMB   int
	RotateBackups int
	RotateMaxAge  int // days

	AddSource      bool
	RedactPatterns []string
}

// Logger wraps slog.Logger with request/task correlation and secret
// redaction.
type Logger struct {
	slog    *slog.Logger
	redacts []*regexp.Regexp
}

// NewLogger builds a Logger from config, applying defaults for zero
// values.
func NewLogger(cfg LogConfig) *Logger {
	var out io.Writer = cfg.Output
	if cfg.RotatePath != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.RotatePath,
			MaxSize:    orDefault(cfg.RotateMaxMB, 100),
			MaxBackups: orDefault(cfg.RotateBackups, 3),
			MaxAge:     orDefault(cfg.RotateMaxAge, 28),
		}
	} else if out == nil {
		out = os.Stdout
	}

	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	patterns := append(append([]string{}, DefaultRedactPatterns...), cfg.RedactPatterns...)
	redacts := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			redacts = append(redacts, re)
		}
	}

	return &Logger{slog: slog.New(handler), redacts: redacts}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Slog returns the underlying *slog.Logger, for packages (like
// internal/runner) that accept a plain *slog.Logger rather than this
// repository's redacting wrapper.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// WithTask returns a Logger that annotates every subsequent record with
// taskID.
func (l *Logger) WithTask(taskID int64) *Logger {
	return &Logger{slog: l.slog.With("task_id", taskID), redacts: l.redacts}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	msg = l.redactString(msg)
	redacted := make([]any, len(args))
	for i, a := range args {
		redacted[i] = l.redactValue(a)
	}

	attrs := make([]any, 0, len(redacted)+4)
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok && reqID != "" {
		attrs = append(attrs, "request_id", reqID)
	}
	if taskID, ok := ctx.Value(TaskIDKey).(int64); ok {
		attrs = append(attrs, "task_id", taskID)
	}
	attrs = append(attrs, redacted...)

	l.slog.Log(ctx, level, msg, attrs...)
}

func (l *Logger) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return l.redactString(val)
	case error:
		return l.redactString(val.Error())
	case []byte:
		return l.redactString(string(val))
	default:
		return v
	}
}

func (l *Logger) redactString(s string) string {
	for _, re := range l.redacts {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// WithRequestID returns ctx annotated for log correlation in HTTP handlers.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithTaskID returns ctx annotated for log correlation inside the Runner.
func WithTaskID(ctx context.Context, taskID int64) context.Context {
	return context.WithValue(ctx, TaskIDKey, taskID)
}

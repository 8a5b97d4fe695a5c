package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

var (
	// level is shared by every handler so SetLevel never rebuilds the handler.
	level = new(slog.LevelVar)

	mu       sync.RWMutex
	format   = "text"
	output   io.Writer = os.Stdout
	closer   io.Closer
	useColor bool
	slogger  *slog.Logger
)

func init() {
	useColor = isTerminal(os.Stdout.Fd())
	rebuild()
}

// rebuild swaps the handler for the current format/output. Caller must not hold mu.
func rebuild() {
	mu.Lock()
	defer mu.Unlock()

	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})
	} else {
		h = tint.NewHandler(output, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !useColor,
		})
	}
	slogger = slog.New(h)
}

// Init applies cfg. Output can be "stdout", "stderr", or a file path.
func Init(cfg Config) error {
	if cfg.Output != "" {
		var w io.Writer
		var c io.Closer
		color := false

		switch strings.ToLower(cfg.Output) {
		case "stdout":
			w, color = os.Stdout, isTerminal(os.Stdout.Fd())
		case "stderr":
			w, color = os.Stderr, isTerminal(os.Stderr.Fd())
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file %q: %w", cfg.Output, err)
			}
			w, c = f, f
		}

		mu.Lock()
		if closer != nil {
			_ = closer.Close()
		}
		output, closer, useColor = w, c, color
		mu.Unlock()
	}

	if cfg.Level != "" {
		if err := SetLevel(cfg.Level); err != nil {
			return err
		}
	}
	if cfg.Format != "" {
		if err := SetFormat(cfg.Format); err != nil {
			return err
		}
	}
	rebuild()
	return nil
}

// InitWithWriter points the logger at w. Used by tests.
func InitWithWriter(w io.Writer, lvl, fmtName string, color bool) {
	mu.Lock()
	output, closer, useColor = w, nil, color
	mu.Unlock()

	_ = SetLevel(lvl)
	_ = SetFormat(fmtName)
	rebuild()
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR (any case) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// SetLevel changes the minimum level at runtime.
func SetLevel(s string) error {
	if s == "" {
		return nil
	}
	l, err := ParseLevel(s)
	if err != nil {
		return err
	}
	level.Set(l)
	return nil
}

// SetFormat switches between "text" and "json".
func SetFormat(s string) error {
	if s == "" {
		return nil
	}
	s = strings.ToLower(s)
	if s != "text" && s != "json" {
		return fmt.Errorf("unknown log format %q", s)
	}
	mu.Lock()
	changed := format != s
	format = s
	mu.Unlock()
	if changed {
		rebuild()
	}
	return nil
}

// Enabled reports whether l would be emitted.
func Enabled(l slog.Level) bool {
	return l >= level.Level()
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at debug level. Usage: Debug("message", "key1", value1)
func Debug(msg string, args ...any) {
	if !Enabled(slog.LevelDebug) {
		return
	}
	get().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

// DebugCtx logs at debug level, prefixing the LogContext fields found in ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	if !Enabled(slog.LevelDebug) {
		return
	}
	get().Debug(msg, withContext(ctx, args)...)
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	get().Info(msg, withContext(ctx, args)...)
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	get().Warn(msg, withContext(ctx, args)...)
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	get().Error(msg, withContext(ctx, args)...)
}

func withContext(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	out := make([]any, 0, 14+len(args))
	if lc.TraceID != "" {
		out = append(out, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		out = append(out, KeySpanID, lc.SpanID)
	}
	if lc.SessionID != "" {
		out = append(out, KeySessionID, lc.SessionID)
	}
	if lc.Username != "" {
		out = append(out, KeyUsername, lc.Username)
	}
	if lc.ClientIP != "" {
		out = append(out, KeyClientIP, lc.ClientIP)
	}
	if lc.Procedure != "" {
		out = append(out, KeyProcedure, lc.Procedure)
	}
	if lc.RequestID != 0 {
		out = append(out, KeyRequestID, lc.RequestID)
	}
	return append(out, args...)
}

// Debugf logs at debug level with printf-style formatting.
func Debugf(format string, v ...any) {
	if !Enabled(slog.LevelDebug) {
		return
	}
	get().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	get().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	get().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	get().Error(fmt.Sprintf(format, v...))
}

// With returns a logger with pre-bound attributes.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

// Duration returns the milliseconds elapsed since start.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

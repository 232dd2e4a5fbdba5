// Package logger provides a structured, context aware logger backed by zerolog.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Level represents the minimum level a logger will emit.
type Level int

// Supported levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string onto a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LoggerInterface is the logging contract used across the application.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	Debugc(ctx context.Context, caller int, msg string, args ...any)
	Infoc(ctx context.Context, caller int, msg string, args ...any)
	Warnc(ctx context.Context, caller int, msg string, args ...any)
	Errorc(ctx context.Context, caller int, msg string, args ...any)
}

// TraceIDFn extracts a trace id from the context.
type TraceIDFn func(ctx context.Context) string

// Logger implements LoggerInterface.
type Logger struct {
	zl        zerolog.Logger
	traceIDFn TraceIDFn
}

var _ LoggerInterface = (*Logger)(nil)

// New creates a JSON logger writing to w. When traceIDFn is nil the trace
// id of the active OpenTelemetry span is used.
func New(w io.Writer, level Level, service string, traceIDFn TraceIDFn) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return newLogger(w, level, service, traceIDFn)
}

// NewConsole creates a human readable logger for terminal use.
func NewConsole(w io.Writer, level Level, service string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	return newLogger(cw, level, service, nil)
}

func newLogger(w io.Writer, level Level, service string, traceIDFn TraceIDFn) *Logger {
	if traceIDFn == nil {
		traceIDFn = spanTraceID
	}

	zl := zerolog.New(w).
		Level(level.zerolog()).
		With().
		Timestamp().
		Str("service", service).
		Logger()

	return &Logger{zl: zl, traceIDFn: traceIDFn}
}

func spanTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zerolog.DebugLevel, 2, msg, args...)
}

// Debugc logs at debug level reporting the caller at the given depth.
func (l *Logger) Debugc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, zerolog.DebugLevel, caller, msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zerolog.InfoLevel, 2, msg, args...)
}

// Infoc logs at info level reporting the caller at the given depth.
func (l *Logger) Infoc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, zerolog.InfoLevel, caller, msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zerolog.WarnLevel, 2, msg, args...)
}

// Warnc logs at warn level reporting the caller at the given depth.
func (l *Logger) Warnc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, zerolog.WarnLevel, caller, msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zerolog.ErrorLevel, 2, msg, args...)
}

// Errorc logs at error level reporting the caller at the given depth.
func (l *Logger) Errorc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, zerolog.ErrorLevel, caller, msg, args...)
}

func (l *Logger) write(ctx context.Context, level zerolog.Level, caller int, msg string, args ...any) {
	ev := l.zl.WithLevel(level)
	if ev == nil {
		return
	}

	if id := l.traceIDFn(ctx); id != "" {
		ev = ev.Str("trace_id", id)
	}

	ev = ev.Caller(caller)

	if len(args)%2 != 0 {
		args = append(args, "!MISSING")
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		switch v := args[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case fmt.Stringer:
			ev = ev.Stringer(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}

	ev.Msg(msg)
}

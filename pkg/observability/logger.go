package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chordme/chordme/pkg/contextkeys"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	return []string{"DEBUG", "INFO", "WARN", "ERROR"}[l]
}

// ParseLogLevel maps a config string to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l LogLevel) toSlogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger provides structured JSON logging using stdlib slog.
type Logger struct {
	logger *slog.Logger
	level  LogLevel
}

// NewLogger creates a structured logger writing to output.
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: level.toSlogLevel(),
	})
	return &Logger{logger: slog.New(handler), level: level}
}

// WithField returns a logger with one extra field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{logger: l.logger.With(key, value), level: l.level}
}

// WithFields returns a logger with multiple extra fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{logger: l.logger.With(args...), level: l.level}
}

// WithError returns a logger carrying the error message.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(message string) { l.logger.Debug(message) }
func (l *Logger) Info(message string)  { l.logger.Info(message) }
func (l *Logger) Warn(message string)  { l.logger.Warn(message) }
func (l *Logger) Error(message string) { l.logger.Error(message) }

func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

type loggerKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the context's logger enriched with the request ID
// and client IP when present. Falls back to a default stdout logger.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(loggerKey{}).(*Logger)
	if !ok {
		logger = NewLogger(InfoLevel, os.Stdout)
	}
	if requestID := contextkeys.RequestIDFromContext(ctx); requestID != "" {
		logger = logger.WithField("request_id", requestID)
	}
	if clientIP := contextkeys.ClientIPFromContext(ctx); clientIP != "" {
		logger = logger.WithField("client_ip", clientIP)
	}
	return logger
}

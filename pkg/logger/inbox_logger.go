package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity
type Level = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
	LevelFatal = zerolog.FatalLevel
)

// ParseLevel parses a string level to Level
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO":
		return LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	case "fatal", "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Config for logger
type Config struct {
	Level   Level
	Output  io.Writer
	Service string
}

type ctxKey string

const (
	// RequestIDKey is the context key carrying the request id.
	RequestIDKey ctxKey = "request_id"
	// SessionIDKey is the context key carrying the chat session id.
	SessionIDKey ctxKey = "session_id"
)

var (
	defaultLogger zerolog.Logger
	initialized   bool
	mu            sync.RWMutex
)

// Init initializes the default logger. Later calls replace it.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = New(cfg)
	initialized = true
}

// New creates a new zerolog logger writing JSON lines.
func New(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Service == "" {
		cfg.Service = "inbox"
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(cfg.Output).
		Level(cfg.Level).
		With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()
}

// Default returns the default logger
func Default() zerolog.Logger {
	mu.RLock()
	if initialized {
		l := defaultLogger
		mu.RUnlock()
		return l
	}
	mu.RUnlock()
	Init(Config{Level: LevelInfo, Output: os.Stdout})
	return Default()
}

// Component returns a child of the default logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return Default().With().Str("component", name).Logger()
}

// WithField returns a logger with an additional field
func WithField(key string, value any) zerolog.Logger {
	return Default().With().Interface(key, value).Logger()
}

// WithFields returns a logger with additional fields
func WithFields(fields map[string]any) zerolog.Logger {
	return Default().With().Fields(fields).Logger()
}

// WithContext extracts request_id and session_id from context
func WithContext(ctx context.Context) zerolog.Logger {
	c := Default().With()
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok && reqID != "" {
		c = c.Str("request_id", reqID)
	}
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok && sessionID != "" {
		c = c.Str("session_id", sessionID)
	}
	return c.Logger()
}

// WithError adds error information
func WithError(err error) zerolog.Logger {
	return Default().With().Err(err).Logger()
}

// WithDuration adds duration in milliseconds
func WithDuration(d time.Duration) zerolog.Logger {
	return Default().With().Float64("duration_ms", float64(d.Microseconds())/1000.0).Logger()
}

// Package-level functions using default logger
func Debug(msg string, args ...any) { l := Default(); l.Debug().Msgf(msg, args...) }
func Info(msg string, args ...any)  { l := Default(); l.Info().Msgf(msg, args...) }
func Warn(msg string, args ...any)  { l := Default(); l.Warn().Msgf(msg, args...) }
func Error(msg string, args ...any) { l := Default(); l.Error().Msgf(msg, args...) }
func Fatal(msg string, args ...any) { l := Default(); l.Fatal().Msgf(msg, args...) }

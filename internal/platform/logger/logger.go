// Package logger wraps a process-wide zerolog logger.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	mu     sync.RWMutex
	logger = zerolog.Nop()
	inited bool
)

type ctxKey string

// RequestIDKey is the context key carrying the HTTP request id.
const RequestIDKey ctxKey = "req_id"

type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json|console
	Output     string `yaml:"output" json:"output"` // stdout|stderr
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init configures the global logger. Only the first call has an effect.
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

		var out io.Writer = os.Stdout
		if cfg.Output == "stderr" {
			out = os.Stderr
		}
		if cfg.Format == "console" {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
		}

		mu.Lock()
		logger = zerolog.New(out).With().Timestamp().Logger()
		inited = true
		mu.Unlock()
	})
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger, initialising it with defaults if needed.
func Get() *zerolog.Logger {
	mu.RLock()
	ok := inited
	mu.RUnlock()
	if !ok {
		Init(DefaultConfig())
	}

	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

// Component returns a child logger tagged with component=name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// WithContext adds the request id found in ctx, if any.
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok && reqID != "" {
		l = l.With().Str("req_id", reqID).Logger()
	}
	return &l
}

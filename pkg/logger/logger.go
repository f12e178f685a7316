package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents logging level
type Level = zerolog.Level

// Logger levels
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config holds logger configuration
type Config struct {
	Level      Level
	TimeFormat string
	Output     io.Writer
	// Pretty switches to the human-readable console writer; JSON otherwise.
	Pretty bool
}

// Logger wraps zerolog.Logger
type Logger struct {
	zl zerolog.Logger
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(s string) Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return InfoLevel
	}
	return lvl
}

// NewLogger creates a new logger instance
func NewLogger(cfg *Config) *Logger {
	if cfg == nil {
		cfg = &Config{
			Level:      InfoLevel,
			TimeFormat: time.RFC3339,
			Output:     os.Stdout,
			Pretty:     true,
		}
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	out := cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	zl := zerolog.New(out).
		Level(cfg.Level).
		With().
		Timestamp().
		Caller().
		Logger()

	return &Logger{zl: zl}
}

// FromZerolog wraps an existing zerolog.Logger.
func FromZerolog(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// Zerolog exposes the underlying logger for middleware that needs it.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// WithFields adds fields to logger
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.zl.Info().Fields(fields).Msg(msg)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.zl.Warn().Fields(fields).Msg(msg)
}

func (l *Logger) Error(err error, msg string, fields ...interface{}) {
	l.zl.Error().Err(err).Fields(fields).Msg(msg)
}

func (l *Logger) Fatal(err error, msg string, fields ...interface{}) {
	l.zl.Fatal().Err(err).Fields(fields).Msg(msg)
}

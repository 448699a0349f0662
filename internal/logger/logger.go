// Package logger builds the zerolog loggers used across seedprune.
//
// Diagnostics go to stderr so that stdout carries only the audit lines
// printed for each retirement.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog for application logging.
type Logger struct {
	zerolog.Logger
	rotator *lumberjack.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string
	Format string // "console" or "json"

	// Out is the console destination, and the fallback when File cannot be
	// used. Defaults to os.Stderr.
	Out io.Writer
	// NoConsole disables console output, e.g. for the background daemon.
	NoConsole bool

	File       string // optional rotated log file
	MaxSizeMB  int    // max size in MB before rotation (default: 10)
	MaxBackups int    // max number of old log files to keep (default: 5)
	MaxAgeDays int    // max age in days to keep old files (default: 30)
	Compress   bool
}

// New creates a new logger instance.
func New(cfg Config) *Logger {
	var writers []io.Writer

	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if !cfg.NoConsole {
		if strings.EqualFold(cfg.Format, "json") {
			writers = append(writers, out)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        out,
				TimeFormat: time.RFC3339,
			})
		}
	}

	var rotator *lumberjack.Logger
	var fileErr error
	if cfg.File != "" {
		if fileErr = os.MkdirAll(filepath.Dir(cfg.File), 0755); fileErr == nil {
			rotator = &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    orDefault(cfg.MaxSizeMB, 10),
				MaxBackups: orDefault(cfg.MaxBackups, 5),
				MaxAge:     orDefault(cfg.MaxAgeDays, 30),
				Compress:   cfg.Compress,
				LocalTime:  true,
			}
			// The file always gets JSON so it can be parsed later.
			writers = append(writers, rotator)
		} else if cfg.NoConsole {
			writers = append(writers, out)
		}
	}

	var output io.Writer
	switch len(writers) {
	case 0:
		output = io.Discard
	case 1:
		output = writers[0]
	default:
		output = io.MultiWriter(writers...)
	}

	logger := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()

	if fileErr != nil {
		logger.Warn().Err(fileErr).Str("file", cfg.File).Msg("Log file unavailable, logging to stderr")
	}

	return &Logger{Logger: logger, rotator: rotator}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent returns a new logger with component field.
func (l *Logger) WithComponent(component string) zerolog.Logger {
	return l.Logger.With().Str("component", component).Logger()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Format selects the log encoding.
type Format string

const (
	// FormatConsole renders human-readable output for terminals.
	FormatConsole Format = "console"

	// FormatJSON renders one JSON object per line.
	FormatJSON Format = "json"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Format chooses console or JSON encoding (default: console).
	Format Format

	// File, when set, duplicates events into a size-rotated log file.
	// The file always receives JSON regardless of Format.
	File string

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatConsole,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var console io.Writer = out
	if cfg.Format != FormatJSON {
		console = zerolog.ConsoleWriter{Out: out}
	}

	writer := console
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		writer = zerolog.MultiLevelWriter(console, rotated)
	}

	logger := zerolog.New(writer).With().Timestamp().Logger()

	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
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

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Page fetches (cursor, records, continuation)
//   - Parse results and quota updates
//   - Pagination stop reasons
//
// Info: Normal operation events
//   - Domain collection start/finish
//   - Retry recovery
//   - Output and delta file writes
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts on transient failures
//   - Page ceiling reached
//   - Unreadable previous output (treated as first run)
//   - Delta file write failures
//
// Error: Error conditions requiring attention
//   - Domain lookups that failed after the retry
//   - Primary output write failures
//
// Context Fields:
//   - domain: Target domain being collected
//   - status_code: HTTP status code
//   - duration: Request duration
//   - error_class: Error classification (not_found, retryable, fatal)
//   - pages: Pages fetched for the domain
//   - records: Unique records accumulated
//   - remaining: Hourly request quota reported by the API
//   - path: File path for state operations

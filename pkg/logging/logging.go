// Package logging is a thin wrapper over log/slog: it builds configured
// loggers for the CLI and server and provides a no-op logger for tests and
// optional collaborators.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the log output format.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level to emit.
	Level slog.Level

	// Format is text or json.
	Format Format

	// Output defaults to os.Stderr.
	Output io.Writer

	// AddSource adds source file and line to entries.
	AddSource bool
}

// New creates a slog.Logger from the config.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.New(handler)
}

// FromStrings builds a logger from the string knobs carried by the config
// file and DEVPROXY_LOG_LEVEL. Unrecognized values fall back to info/text.
func FromStrings(level, format string) *slog.Logger {
	return New(Config{
		Level:  ParseLevel(level),
		Format: ParseFormat(format),
	})
}

// Nop returns a logger that discards all output.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel parses a level string (debug, info, warn, error). Unknown
// values map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// ParseFormat parses a format string (text, json). Unknown values map to
// text.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatText
}

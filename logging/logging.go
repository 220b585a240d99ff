// Package logging - Structured logging setup for the harness.
//
// Logs always go to stderr (or the configured writer) so that stdout stays
// reserved for reports in the parent and for the result envelope in a child.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

// Format selects the log encoding.
type Format string

// Format constants
const (
	// FormatAuto uses text on a terminal and JSON otherwise.
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config configures the logger. A zero value logs Info+ as auto-detected
// text/JSON to stderr.
type Config struct {
	Level  slog.Level
	Format Format
	Output io.Writer
}

// New creates a slog logger for the configuration.
//
// Arguments:
//   - cfg: The logger configuration.
//
// Returns:
//   - *slog.Logger: The configured logger.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	if resolveFormat(cfg.Format, out) == FormatJSON {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// resolveFormat picks text for terminals when the format is auto.
func resolveFormat(f Format, out io.Writer) Format {
	switch f {
	case FormatText, FormatJSON:
		return f
	}
	if file, ok := out.(*os.File); ok {
		fd := file.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			return FormatText
		}
	}
	return FormatJSON
}

// ParseLevel converts "debug", "info", "warn" or "error" into a level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown log level %q", s)
	}
}

// ParseFormat validates a log format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatAuto, FormatText, FormatJSON:
		return f, nil
	case "":
		return FormatAuto, nil
	default:
		return FormatAuto, errors.Errorf("unknown log format %q", s)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

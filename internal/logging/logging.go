// Package logging builds the structured log sink threaded through the shim.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the sink. Debug is the raw DEBUG environment value; File
// and Level come from the settings file.
type Options struct {
	Debug  string
	Level  string
	File   string
	Stderr io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a JSON logger and the closer for its underlying file.
//
// A DEBUG value containing a dot names a file to append to at debug level;
// any other non-empty DEBUG logs to stderr at debug level. Otherwise a
// configured file receives records at the configured level, and with no
// file only warn or error levels reach stderr. Everything else is discarded.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	switch {
	case strings.Contains(opts.Debug, "."):
		return fileLogger(opts.Debug, slog.LevelDebug)
	case opts.Debug != "":
		return jsonLogger(stderr, slog.LevelDebug), nopCloser{}, nil
	}

	level := ParseLevel(opts.Level)
	if opts.File != "" {
		return fileLogger(opts.File, level)
	}
	if level >= slog.LevelWarn {
		return jsonLogger(stderr, level), nopCloser{}, nil
	}
	return slog.New(slog.DiscardHandler), nopCloser{}, nil
}

func jsonLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func fileLogger(path string, level slog.Level) (*slog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return jsonLogger(f, level), f, nil
}

// ParseLevel maps a settings level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

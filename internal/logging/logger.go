// Package logging builds the zerolog loggers used across the assistant.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// #region config
// Config holds logger configuration
type Config struct {
	Level   string // debug, info, warn, error
	Console bool   // human-readable output on stderr
	File    string // optional JSON log file, appended
}

// ParseLevel maps a level name to zerolog; unknown names fall back to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// #endregion config

// #region new
// New returns the application logger and a closer for its file, if any.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		f, err := openAppend(cfg.File)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		writers = append(writers, f)
		closer = f
	}
	if cfg.Console || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	l := zerolog.New(io.MultiWriter(writers...)).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("app", "assistant").
		Logger()
	return l, closer, nil
}

// NewFallback returns the audit fallback channel: JSON lines to path, or to
// stderr when path is empty. It logs at every level.
func NewFallback(path string) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		return zerolog.New(os.Stderr).With().Timestamp().Str("channel", "audit_fallback").Logger(), nopCloser{}, nil
	}
	f, err := openAppend(path)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return zerolog.New(f).With().Timestamp().Str("channel", "audit_fallback").Logger(), f, nil
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// #endregion new

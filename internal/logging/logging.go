// Package logging configures the process-wide zerolog logger and provides
// context plumbing plus once-per-message warning deduplication.
package logging

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum level to emit ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// File, when set, duplicates output to the named file in addition to
	// the console.
	File string `yaml:"file"`
}

// isTerminal reports whether the given file is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// New builds a logger from cfg. Console output goes to stderr, colored only
// when stderr is a terminal. When cfg.File is set the file is opened in
// append mode and logs are duplicated there; the returned cleanup closes it.
// An unparseable level falls back to info.
func New(cfg Config) (zerolog.Logger, func(), error) {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal(os.Stderr),
	}}

	cleanup := func() {}
	if cfg.File != "" {
		logFile, fileErr := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if fileErr != nil {
			return zerolog.Nop(), cleanup, fileErr
		}
		writers = append(writers, logFile)
		cleanup = func() { _ = logFile.Close() }
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return logger, cleanup, nil
}

// WithContext returns a copy of ctx carrying the logger.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or a disabled logger when
// none is present.
func FromContext(ctx context.Context) zerolog.Logger {
	return *zerolog.Ctx(ctx)
}

// Once deduplicates diagnostics: each distinct message string is emitted at
// most one time for the lifetime of the Once value. Degraded-cache
// conditions recur on every operation; without deduplication they would
// flood the output.
type Once struct {
	seen sync.Map
}

// Warn emits msg at warn level unless an identical message was already
// emitted through this Once. Reports whether the message was emitted.
func (o *Once) Warn(logger zerolog.Logger, component, msg string) bool {
	if _, dup := o.seen.LoadOrStore(msg, struct{}{}); dup {
		return false
	}
	logger.Warn().Str("component", component).Msg(msg)
	return true
}

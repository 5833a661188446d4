// Package logging builds the zerolog logger shared by every command.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CriticalLevel is how fatal events are rendered. Runs never call os.Exit from
// a log statement, so the fatal level only marks aborts.
const CriticalLevel = "CRITICAL"

// Options configures the logger
type Options struct {
	// Level is a zerolog level name; empty means info
	Level string
	// File receives a plain text copy of every event; empty disables it
	File string
	// Console defaults to stderr
	Console io.Writer
	// NoColor disables console colors
	NoColor bool
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// New builds a logger writing to the console and, if configured, a log file.
// It also becomes the global logger. Close the returned closer on exit.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	writers := []io.Writer{newConsoleWriter(console, opts.NoColor)}
	closer := io.Closer(closerFunc(func() error { return nil }))

	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		writers = append(writers, newConsoleWriter(file, true))
		closer = file
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = logger
	return logger, closer, nil
}

func newConsoleWriter(out io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:         out,
		NoColor:     noColor,
		TimeFormat:  time.DateTime,
		FormatLevel: formatLevel,
	}
}

func formatLevel(i interface{}) string {
	level, ok := i.(string)
	if !ok {
		return "-"
	}
	if level == zerolog.LevelFatalValue || level == zerolog.LevelPanicValue {
		return CriticalLevel
	}
	return fmt.Sprintf("%-5s", strings.ToUpper(level))
}

// Package logger builds the zerolog loggers used by the command line tools
// and the server.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var pid = os.Getpid()

// Logger wraps a zerolog.Logger so it can be passed around by pointer and
// swapped for tests.
type Logger struct {
	logger zerolog.Logger
}

// New returns a JSON logger writing to stderr.
func New(isDebug bool) *Logger {
	return NewWriter(os.Stderr, isDebug)
}

// NewWriter returns a JSON logger writing to w.
func NewWriter(w io.Writer, isDebug bool) *Logger {
	l := zerolog.New(w).Level(level(isDebug)).With().Timestamp().Int("pid", pid).Logger()
	return &Logger{logger: l}
}

// NewConsole returns a human readable logger writing to stderr.
func NewConsole(isDebug bool, noColor bool) *Logger {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000", NoColor: noColor}
	if noColor {
		output.FormatMessage = func(i any) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("%v", i)
		}
	}
	l := zerolog.New(output).Level(level(isDebug)).With().Timestamp().Logger()
	return &Logger{logger: l}
}

// Nop returns a logger that discards everything.
func Nop() *Logger { return &Logger{logger: zerolog.Nop()} }

func level(isDebug bool) zerolog.Level {
	if isDebug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// Zerolog returns the underlying logger, for libraries that take a
// zerolog.Logger value.
func (l *Logger) Zerolog() zerolog.Logger { return l.logger }

// GetLevel returns the minimum level l writes.
func (l *Logger) GetLevel() zerolog.Level { return l.logger.GetLevel() }

// With creates a child logger with the field added to its context.
func (l *Logger) With() zerolog.Context { return l.logger.With() }

// Extend returns a child Logger built from ctx.
func (l *Logger) Extend(ctx zerolog.Context) *Logger { return &Logger{logger: ctx.Logger()} }

// Debug starts a new message with debug level.
func (l *Logger) Debug() *zerolog.Event { return l.logger.Debug() }

// Info starts a new message with info level.
func (l *Logger) Info() *zerolog.Event { return l.logger.Info() }

// Warn starts a new message with warn level.
func (l *Logger) Warn() *zerolog.Event { return l.logger.Warn() }

// Error starts a new message with error level.
func (l *Logger) Error() *zerolog.Event { return l.logger.Error() }

// Since logs the time elapsed since start under the "duration" field.
func Since(e *zerolog.Event, start time.Time) *zerolog.Event {
	return e.Dur("duration", time.Since(start))
}

// Package logging provides a shared logger and log utilities to be used in all internal packages.
package logging

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// L is the process wide logger. Use the package level helpers where possible.
var L = newLogger(defaultWriter())

func defaultWriter() io.Writer {
	if isTerminal() {
		return zerolog.ConsoleWriter{
			Out:         os.Stderr,
			TimeFormat:  time.RFC3339,
			FormatLevel: consoleFormatLevel,
		}
	}

	return os.Stderr
}

func newLogger(writer io.Writer) zerolog.Logger {
	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger().
		Level(zerolog.InfoLevel)
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// SetLevel sets the level of the global logger. Unknown levels return an error
// and leave the logger unchanged.
func SetLevel(levelName string) error {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return err
	}

	L = L.Level(level)
	return nil
}

// PatchLogger replaces the global logger with one that writes JSON to writer,
// and restores the original logger when the test ends.
func PatchLogger(t *testing.T, writer io.Writer) {
	origL := L
	L = newLogger(writer).Level(zerolog.TraceLevel)
	t.Cleanup(func() {
		L = origL
	})
}

func Debugf(format string, v ...interface{}) {
	L.Debug().CallerSkipFrame(1).Msgf(format, v...)
}

func Infof(format string, v ...interface{}) {
	L.Info().CallerSkipFrame(1).Msgf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	L.Warn().CallerSkipFrame(1).Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	L.Error().CallerSkipFrame(1).Msgf(format, v...)
}

// Package logging builds the structured loggers handed to the store,
// fetchers and commands.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w. Verbose enables debug output.
func New(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
}

// Stderr is the logger used by the CLI.
func Stderr(verbose bool) *log.Logger {
	l := New(os.Stderr, verbose)
	if !verbose {
		l.SetLevel(log.WarnLevel)
	}
	return l
}

// Discard drops everything. Used when no logger is supplied.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// OrDiscard guards constructors that accept an optional logger.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

package main

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Dependencies holds injectable dependencies for testability.
type Dependencies struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger // structured diagnostics on stderr
}

// DefaultDeps returns production dependencies.
func DefaultDeps() *Dependencies {
	return &Dependencies{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: newLogger(os.Stderr),
	}
}

// newLogger builds the CLI logger. Timestamps are noise for a short-lived
// command, so they are off.
func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: false,
	})
}

// Package logger builds the zerolog logger used by the server.
package logger

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New returns a JSON logger writing to w at the given level, with
// timestamps and the service name attached to every event.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "edge-matte-mcp").
		Logger()
}

// NewStderr logs to stderr, human-readable when stderr is a terminal.
// Stdout is reserved for the MCP protocol.
func NewStderr(level zerolog.Level) zerolog.Logger {
	var w io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return New(w, level)
}

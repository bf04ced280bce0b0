package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// NewLogger creates a console logger writing to stderr. Debug output is
// enabled when debug is set; colors only when stderr is a terminal.
func NewLogger(debug bool) (*zerolog.Logger, error) {
	color := term.IsTerminal(int(os.Stderr.Fd()))
	return newLogger(os.Stderr, debug, !color), nil
}

func newLogger(w io.Writer, debug, noColor bool) *zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: noColor}
	l := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &l
}

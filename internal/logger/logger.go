// Package logger builds the structured loggers used across rag-lab.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

// New returns a logger at the given level. Format "json" writes one JSON
// object per line; anything else writes colored console output when w is a
// terminal. A nil w means stderr.
func New(level, format string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}

	l := &log.Logger{
		Level:      log.ParseLevel(strings.ToLower(level)),
		TimeFormat: "15:04:05",
	}
	if strings.EqualFold(format, "json") {
		l.TimeFormat = ""
		l.Writer = &log.IOWriter{Writer: w}
		return l
	}

	l.Writer = &log.ConsoleWriter{
		Writer:         w,
		ColorOutput:    w == os.Stderr && log.IsTerminal(os.Stderr.Fd()),
		QuoteString:    true,
		EndWithMessage: true,
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() *log.Logger {
	return &log.Logger{
		Level:  log.ErrorLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}

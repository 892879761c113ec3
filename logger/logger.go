// Package logger builds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// New returns a logger writing to out at the given level. Terminals get the
// human-readable console format, everything else gets JSON lines.
func New(level string, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	w := out
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Logger()
}

// GooseLogger adapts a zerolog logger to goose's Logger interface.
type GooseLogger struct {
	Log zerolog.Logger
}

func (g GooseLogger) Printf(format string, v ...any) {
	g.Log.Debug().Msgf(format, v...)
}

func (g GooseLogger) Fatalf(format string, v ...any) {
	g.Log.Fatal().Msgf(format, v...)
}

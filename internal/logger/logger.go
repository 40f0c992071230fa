package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Default is the process-wide logger. It discards output until Init is called,
// so packages can log freely from tests.
var Default = zerolog.Nop()

// Init configures Default with a console writer on stderr at the level named
// by LOG_LEVEL (info when unset or invalid). Stdout is left to command output.
func Init() {
	InitWithWriter(os.Stderr, os.Getenv("LOG_LEVEL"))
}

// InitWithWriter is Init with an explicit sink and level string.
func InitWithWriter(w io.Writer, levelStr string) {
	level := parseLevel(levelStr)

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	Default = zerolog.New(output).With().Timestamp().Logger()

	Default.Debug().Str("level", level.String()).Msg("logger initialized")
}

func parseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// For returns a child logger tagged with a component name.
func For(component string) zerolog.Logger {
	return Default.With().Str("component", component).Logger()
}

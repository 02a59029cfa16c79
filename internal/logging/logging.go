// Package logging builds the structured logger shared by the scheduler
// components: logiface on top of zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

func init() {
	// logiface does the level filtering
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

// NewLogger creates a logger writing to stderr.
//
// format: "text" (console) or "json"
func NewLogger(level logiface.Level, format string) *logiface.Logger[logiface.Event] {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to w.
func NewLoggerWithWriter(level logiface.Level, format string, w io.Writer) *logiface.Logger[logiface.Event] {
	var z zerolog.Logger
	switch strings.ToLower(format) {
	case "json":
		z = zerolog.New(w).With().Timestamp().Logger()
	default:
		z = zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).With().Timestamp().Logger()
	}
	impl := &Logger{Z: z}
	return logiface.New[*Event](
		logiface.WithEventFactory[*Event](impl),
		logiface.WithWriter[*Event](impl),
		logiface.WithLevel[*Event](level),
	).Logger()
}

// ParseLevel converts a level name to a logiface level.
// Returns LevelInformational for unrecognized values.
func ParseLevel(s string) logiface.Level {
	switch strings.ToLower(s) {
	case "trace":
		return logiface.LevelTrace
	case "debug":
		return logiface.LevelDebug
	case "info":
		return logiface.LevelInformational
	case "notice":
		return logiface.LevelNotice
	case "warn", "warning":
		return logiface.LevelWarning
	case "error":
		return logiface.LevelError
	case "off", "disabled", "none":
		return logiface.LevelDisabled
	default:
		return logiface.LevelInformational
	}
}

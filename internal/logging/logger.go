// Package logging configures the global zerolog logger and the one-line
// startup summary each binary emits.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables read by Init.
const (
	EnvLevel  = "COACH_LOG_LEVEL"  // debug, info, warn, error (default info)
	EnvFormat = "COACH_LOG_FORMAT" // console (default) or json
)

// Init configures the global logger from the environment. Logs always go to
// stderr so that stdout stays free for command output and EMF metrics.
func Init() {
	InitWith(os.Getenv(EnvLevel), os.Getenv(EnvFormat), os.Stderr)
}

// InitWith configures the global logger explicitly.
func InitWith(level, format string, w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if strings.EqualFold(format, "json") {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

// ParseLevel maps a level name to a zerolog level. Unknown names yield info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Package logging configures the global zerolog logger: a console writer
// for interactive use, JSON output otherwise.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup parses levelName (falling back to info on a bad value) and installs
// either a pretty console writer (pretty=true, for local development) or
// zerolog's default JSON output (production).
func Setup(levelName string, pretty bool) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

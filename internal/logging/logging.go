// Package logging provides the project's single structured logger,
// grounded on cristian1one-virtual-vectorfs's vvfs.GetLogger: one zerolog.Logger
// writing timestamped events to stderr, rather than the standard
// library's unstructured log.Printf.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger returns a new zerolog logger writing to stderr with a
// timestamp field on every event.
func Logger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// SetLevel adjusts the global minimum log level, used by the CLI and
// service's configuration to silence debug statistics unless asked for.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

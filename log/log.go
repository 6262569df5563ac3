// Package log configures the process-wide zerolog logger used for
// structured, event-level logging: admission success/failure, stream
// start/stop, SAP discovery/expiry. Packet-level faults are never logged
// here — they are counted in per-stream Statistics only.
package log

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. When pretty is true it writes a
// colorized console format to stdout (suitable for an interactive
// terminal); otherwise it writes newline-delimited JSON, suitable for
// collection by a log shipper.
func Init(pretty bool, level zerolog.Level) {
	zerolog.SetGlobalLevel(level)

	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: colorable.NewColorableStdout()}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// Event returns a sub-logger tagged with the named component, e.g.
// Event("receiver").Info().Str("stream", id).Msg("started").
func Event(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

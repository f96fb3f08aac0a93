// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects level, format and destination.
type Options struct {
	Level  string
	Format string // console or json
	// Out defaults to stderr.
	Out io.Writer
}

// Setup installs the global logger.
func Setup(opts Options) error {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		var err error
		if level, err = zerolog.ParseLevel(opts.Level); err != nil {
			return fmt.Errorf("parse log level: %w", err)
		}
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	switch opts.Format {
	case "", "console":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Caller().Logger()
	case "json":
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	default:
		return fmt.Errorf("unknown log format %q", opts.Format)
	}
	return nil
}

// Discard silences the global logger, for full-screen terminal UIs.
func Discard() {
	log.Logger = zerolog.New(io.Discard)
}

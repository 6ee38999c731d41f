// Package logutil centralizes zerolog setup, mapping the
// loglevel/logfile options onto zerolog's level and output sink, and
// handing out per-subsystem child loggers (engine, rdb, aof, replication,
// swap) the way a larger zerolog-based service tags component fields
// rather than prefixing strings by hand.
package logutil

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level maps the configured loglevel vocabulary onto zerolog's.
func Level(name string) zerolog.Level {
	switch name {
	case "debug":
		return zerolog.DebugLevel
	case "verbose":
		return zerolog.InfoLevel
	case "notice":
		return zerolog.WarnLevel
	case "warning":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds the root logger, writing to logfile when non-empty, else
// stderr, with a level derived from loglevel.
func New(loglevel, logfile string) (zerolog.Logger, error) {
	var out io.Writer = os.Stderr
	if logfile != "" {
		f, err := os.OpenFile(logfile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Logger{}, err
		}
		out = f
	}
	logger := zerolog.New(out).Level(Level(loglevel)).With().Timestamp().Logger()
	return logger, nil
}

// Component returns a child logger tagging every event with
// component=name (engine, rdb, aof, replication, swap, ...).
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// Package neoki defines the globals of the Neoki ledger components.
//
// The contracts and services of this module log through a single logger whose
// level is read from the LLVL environment variable at startup.
package neoki

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// EnvLogLevel is the name of the environment variable to change the logging
// level.
const EnvLogLevel = "LLVL"

const defaultLevel = zerolog.InfoLevel

func init() {
	switch os.Getenv(EnvLogLevel) {
	case "error":
		Logger = Logger.Level(zerolog.ErrorLevel)
	case "warn":
		Logger = Logger.Level(zerolog.WarnLevel)
	case "info":
		Logger = Logger.Level(zerolog.InfoLevel)
	case "debug":
		Logger = Logger.Level(zerolog.DebugLevel)
	case "trace":
		Logger = Logger.Level(zerolog.TraceLevel)
	case "":
		Logger = Logger.Level(defaultLevel)
	}
}

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(defaultLevel)

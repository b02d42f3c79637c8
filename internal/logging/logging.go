// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLevel names the environment variable that sets the log level.
const EnvLevel = "SLIDE_OVERLAY_LOG_LEVEL"

// Setup points the global logger at a console writer on w. An empty level
// falls back to EnvLevel, then to info. Unknown levels also fall back to info.
// Stdout carries the MCP protocol, so callers pass os.Stderr.
func Setup(w io.Writer, level string) zerolog.Logger {
	if level == "" {
		level = os.Getenv(EnvLevel)
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	logger := New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}, lvl)
	log.Logger = logger
	zerolog.SetGlobalLevel(lvl)
	return logger
}

// New returns a timestamped logger writing to w at level.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

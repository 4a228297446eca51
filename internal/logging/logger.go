// Package logging sets up the console logger shared by the commands.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLevel names the environment variable that overrides the log level.
const EnvLevel = "QIMAP_LOG_LEVEL"

// InitLogger builds a console logger tagged with app, writing to out, and
// installs it as the global logger. The level is taken from EnvLevel when
// set, otherwise from level; unknown names fall back to info.
func InitLogger(app string, out io.Writer, level string) zerolog.Logger {
	if env := os.Getenv(EnvLevel); env != "" {
		level = env
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).
		Level(ParseLevel(level)).
		With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a level name onto a zerolog level.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

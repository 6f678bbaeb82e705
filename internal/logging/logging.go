// Package logging builds the service's zerolog logger.
package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a JSON logger writing to w at the given level.
// An empty or unknown level falls back to info.
func New(level string, w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "" {
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

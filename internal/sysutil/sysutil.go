// Package sysutil holds small process-level helpers shared by the API server
// and the invite worker binaries.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

// SetLogLevel applies the configured log level globally. Both binaries call
// this once at startup with cfg.LogLevel before any request or job is
// handled.
//
// The value is matched case-insensitively against zerolog's level names
// ("debug", "info", "warn", ...). An empty or unknown value falls back to
// info so a typo in the environment never silences the process.
func SetLogLevel(lvl string) {
	s := strings.ToLower(strings.TrimSpace(lvl))
	if s == "warning" {
		s = "warn"
	}
	parsed, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

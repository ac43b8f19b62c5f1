// Package logger configures structured logging with log/slog. Binaries call
// Init once at startup; hot-path components keep using the standard log
// package with "[component]" prefixes, which ends up routed through the same
// handler.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init sets up a JSON slog handler tagged with the service name and installs
// it as the default logger.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	l := slog.New(handler).With(slog.String("service", service))
	slog.SetDefault(l)
	return l
}

// LevelFromEnv reads LOG_LEVEL (debug, info, warn, error), defaulting to
// info.
func LevelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

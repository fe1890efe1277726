package main

import (
	"log/slog"
	"os"
)

// newLogger builds the process-wide slog.Logger, text-formatted the same
// way cmd/dex/logger.go defaults to when no format is configured.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
